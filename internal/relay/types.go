package relay

import "time"

// Command is a relay switch request as received from the API.
type Command struct {
	// RelayID identifies the relay, e.g. "Relay-ESP32-01" or "Relay-1".
	RelayID string `json:"relay_id"`

	// Command is the requested state, "ON" or "OFF".
	Command string `json:"command"`

	// Reason is a free-form operator note, e.g. "MANUAL" or "OVERLOAD".
	Reason string `json:"reason"`

	// InitiatedBy records who or what issued the command.
	InitiatedBy string `json:"initiated_by"`
}

// Outcome describes how far a command made it through the coordinator.
type Outcome string

// Coordinator outcomes.
const (
	// OutcomePublished means the command reached the broker.
	OutcomePublished Outcome = "published"

	// OutcomePublishFailed means the broker publish failed; the status
	// update and log entry were still recorded.
	OutcomePublishFailed Outcome = "publish_failed"

	// OutcomeSkippedUnresolved means the relay could not be mapped to a
	// device; nothing was published, only the log entry was recorded.
	OutcomeSkippedUnresolved Outcome = "skipped_unresolved"
)

// Result is the coordinator's record of an accepted command.
type Result struct {
	RelayID  string  `json:"relay_id"`
	DeviceID string  `json:"esp_id,omitempty"`
	Command  string  `json:"command"`
	Outcome  Outcome `json:"outcome"`
}

// LogEntry is one row of the relay command audit trail.
// Entries are append-only.
type LogEntry struct {
	ID          string    `json:"id"`
	ESPID       string    `json:"esp_id,omitempty"`
	RelayID     string    `json:"relay_id"`
	Command     string    `json:"command"`
	Reason      string    `json:"reason"`
	InitiatedBy string    `json:"initiated_by"`
	NewStatus   string    `json:"new_status"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
}
