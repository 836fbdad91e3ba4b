package telemetry

import (
	"sort"
	"sync"
)

// DefaultHistorySize is the per-device history capacity used when the
// configured value is missing or invalid.
const DefaultHistorySize = 50

// HistoryCache keeps a bounded in-memory window of recent readings per
// device for charting. SQLite remains the source of truth; the cache
// only serves dashboard reads that would otherwise hammer the database
// on every poll.
//
// Each device holds at most capacity readings. When full, recording a
// new reading evicts the oldest (FIFO). All methods are safe for
// concurrent use.
type HistoryCache struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string][]Reading
}

// NewHistoryCache creates a history cache with the given per-device
// capacity. Non-positive capacities fall back to DefaultHistorySize.
func NewHistoryCache(capacity int) *HistoryCache {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &HistoryCache{
		capacity: capacity,
		buffers:  make(map[string][]Reading),
	}
}

// Record appends a reading to its device's window, evicting the oldest
// reading when the window is full.
func (c *HistoryCache) Record(r Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.buffers[r.ESPID]
	if len(buf) == c.capacity {
		copy(buf, buf[1:])
		buf[len(buf)-1] = r
	} else {
		buf = append(buf, r)
	}
	c.buffers[r.ESPID] = buf
}

// History returns a copy of the device's window, oldest first.
// Unknown devices return an empty slice.
func (c *HistoryCache) History(deviceID string) []Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf := c.buffers[deviceID]
	out := make([]Reading, len(buf))
	copy(out, buf)
	return out
}

// Devices returns the identifiers of all devices with recorded
// readings, sorted.
func (c *HistoryCache) Devices() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.buffers))
	for id := range c.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Capacity returns the per-device window size.
func (c *HistoryCache) Capacity() int {
	return c.capacity
}
