package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/balixgaruda/powermon-core/internal/infrastructure/config"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/mqtt"
	"github.com/balixgaruda/powermon-core/internal/relay"
	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// Defaults applied when the ingest config section is missing or invalid.
const (
	defaultWorkers      = 4
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second

	// subscribeQoS is the QoS for device topic subscriptions.
	subscribeQoS = 1
)

// Store is the subset of the telemetry store the pipeline needs.
type Store interface {
	InsertReading(ctx context.Context, r *telemetry.Reading) error
	UpdateRelayStatus(ctx context.Context, deviceID string, status telemetry.RelayStatus) error
}

// Subscriber is the subset of the MQTT client the pipeline needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Archiver mirrors stored readings into the time-series database.
// Implemented by the InfluxDB client; optional.
type Archiver interface {
	WriteSensorReading(deviceID string, voltage, current, power float64, relayStatus string, ts time.Time)
}

// Broadcaster pushes stored readings to connected dashboards.
// Implemented by the WebSocket hub; optional.
type Broadcaster interface {
	BroadcastReading(r telemetry.Reading)
}

// Logger is the minimal logging interface used by the pipeline.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

type jobKind int

const (
	jobSensor jobKind = iota
	jobRelayEvent
)

// job is one unit of work handed from a paho callback to the pool.
type job struct {
	kind    jobKind
	topic   string
	reading *telemetry.Reading

	// relay event fields
	deviceID string
	status   telemetry.RelayStatus
}

// Pipeline moves device messages from MQTT into storage.
//
// Paho delivers messages on its own goroutines; handlers only parse and
// enqueue, so a slow store write never blocks message delivery. A fixed
// worker pool drains a bounded queue. When the queue is full new
// messages are dropped with a warning (reject-new): under sustained
// overload fresh telemetry is worth more than a growing backlog.
type Pipeline struct {
	store    Store
	history  *telemetry.HistoryCache
	relayLog relay.LogRepository
	logger   Logger

	archiver    Archiver
	broadcaster Broadcaster

	queue        chan job
	workers      int
	writeTimeout time.Duration

	// stopMu guards queue sends against Stop closing the channel;
	// paho keeps delivering on its own goroutines until the client
	// disconnects, which may be after Stop.
	stopMu  sync.RWMutex
	stopped bool

	wg     sync.WaitGroup
	topics mqtt.Topics

	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// New creates a pipeline. Workers are not started until Start.
func New(cfg config.IngestConfig, store Store, history *telemetry.HistoryCache, relayLog relay.LogRepository, logger Logger) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	writeTimeout := cfg.GetWriteTimeout()
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Pipeline{
		store:        store,
		history:      history,
		relayLog:     relayLog,
		logger:       logger,
		queue:        make(chan job, queueSize),
		workers:      workers,
		writeTimeout: writeTimeout,
	}
}

// SetArchiver attaches an optional time-series archiver.
// Must be called before Start.
func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// SetBroadcaster attaches an optional dashboard broadcaster.
// Must be called before Start.
func (p *Pipeline) SetBroadcaster(b Broadcaster) {
	p.broadcaster = b
}

// Start launches the worker pool and subscribes to the device topics.
func (p *Pipeline) Start(sub Subscriber) error {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker()
	}

	if err := sub.Subscribe(p.topics.AllSensorReports(), subscribeQoS, p.handleSensorMessage); err != nil {
		return err
	}
	if err := sub.Subscribe(p.topics.AllRelayEvents(), subscribeQoS, p.handleRelayMessage); err != nil {
		return err
	}

	return nil
}

// Stop drains the queue and waits for in-flight jobs to finish.
// Close the MQTT client first so the drain is bounded; any message
// still delivered after Stop is counted as dropped.
func (p *Pipeline) Stop() {
	p.stopMu.Lock()
	if p.stopped {
		p.stopMu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.stopMu.Unlock()

	p.wg.Wait()
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

// handleSensorMessage parses a sensor report and enqueues it.
// Runs on a paho goroutine. Errors are absorbed here, never returned,
// so one malformed payload cannot disturb the subscription.
func (p *Pipeline) handleSensorMessage(topic string, payload []byte) error {
	deviceID := mqtt.DeviceFromTopic(topic)

	reading, err := ParseReading(deviceID, payload)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("discarding malformed sensor report",
			"topic", topic, "error", err)
		return nil
	}

	p.enqueue(job{kind: jobSensor, topic: topic, reading: reading})
	return nil
}

// handleRelayMessage parses a device-side relay event and enqueues it.
func (p *Pipeline) handleRelayMessage(topic string, payload []byte) error {
	deviceID := mqtt.DeviceFromTopic(topic)

	espID, status, err := ParseRelayEvent(deviceID, payload)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("discarding malformed relay event",
			"topic", topic, "error", err)
		return nil
	}

	p.enqueue(job{kind: jobRelayEvent, topic: topic, deviceID: espID, status: status})
	return nil
}

// enqueue hands a job to the pool, dropping it when the queue is full
// or the pipeline has already stopped.
func (p *Pipeline) enqueue(j job) {
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		p.logger.Warn("ingest pipeline stopped, dropping message",
			"topic", j.topic)
		return
	}

	select {
	case p.queue <- j:
	default:
		p.dropped.Add(1)
		p.logger.Warn("ingest queue full, dropping message",
			"topic", j.topic)
	}
}

// worker drains the queue until Stop closes it.
func (p *Pipeline) worker() {
	defer p.wg.Done()

	for j := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)

		var err error
		switch j.kind {
		case jobSensor:
			err = p.processSensor(ctx, j.reading)
		case jobRelayEvent:
			err = p.processRelayEvent(ctx, j.deviceID, j.status)
		}
		cancel()

		if err != nil {
			p.failed.Add(1)
			p.logger.Error("ingest job failed",
				"topic", j.topic, "error", err)
			continue
		}
		p.processed.Add(1)
	}
}

// processSensor stores a reading and fans it out to the history cache,
// the archiver, and the dashboard hub.
func (p *Pipeline) processSensor(ctx context.Context, r *telemetry.Reading) error {
	if err := p.store.InsertReading(ctx, r); err != nil {
		return err
	}

	p.history.Record(*r)

	if p.archiver != nil {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}
		p.archiver.WriteSensorReading(r.ESPID, r.Voltage, r.Current, r.Power, string(r.RelayStatus), ts)
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastReading(*r)
	}

	return nil
}

// processRelayEvent records a device-reported relay state change.
// The device is authoritative: its report overwrites whatever status a
// pending command wrote, closing the eventual-consistency window.
func (p *Pipeline) processRelayEvent(ctx context.Context, deviceID string, status telemetry.RelayStatus) error {
	if err := p.store.UpdateRelayStatus(ctx, deviceID, status); err != nil {
		return err
	}

	entry := &relay.LogEntry{
		ESPID:       deviceID,
		RelayID:     "Relay-" + deviceID,
		Command:     string(status),
		Reason:      "DEVICE_REPORT",
		InitiatedBy: "device",
		NewStatus:   string(status),
		Delivered:   true,
	}
	return p.relayLog.Insert(ctx, entry)
}
