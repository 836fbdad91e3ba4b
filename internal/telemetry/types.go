package telemetry

import "time"

// RelayStatus is the reported state of a panel's relay.
type RelayStatus string

// Relay status values as reported by the panel controllers.
const (
	RelayOn  RelayStatus = "ON"
	RelayOff RelayStatus = "OFF"
)

// Valid reports whether s is a recognised relay status.
func (s RelayStatus) Valid() bool {
	return s == RelayOn || s == RelayOff
}

// Reading is a single telemetry report from a panel controller.
//
// Readings are immutable once recorded, with one exception: the
// relay_status of a device's latest reading may be overwritten by the
// command coordinator so that monitoring reflects an issued command
// before the device's next report arrives.
//
// JSON field names match the device wire format.
type Reading struct {
	// ID is the auto-incremented primary key for the stored row.
	// Zero for readings not yet persisted.
	ID int64 `json:"id,omitempty"`

	// ESPID is the reporting panel controller (e.g. "ESP32-01").
	ESPID string `json:"esp_id"`

	// Voltage is the measured line voltage in volts.
	Voltage float64 `json:"voltage"`

	// Current is the measured current in amperes.
	Current float64 `json:"current"`

	// Power is the measured active power in watts.
	Power float64 `json:"power"`

	// RelayStatus is the relay state at the time of the report.
	RelayStatus RelayStatus `json:"relay_status"`

	// Timestamp is the report time in RFC 3339 UTC.
	Timestamp string `json:"timestamp"`
}

// Alert is an operator-visible condition raised against a panel.
// Alerts are append-only.
type Alert struct {
	ID              int64     `json:"id"`
	AlertType       string    `json:"alert_type"`
	ESPID           string    `json:"esp_id"`
	Description     string    `json:"description"`
	SuggestedAction string    `json:"suggested_action"`
	CreatedAt       time.Time `json:"created_at"`
}

// UsageBucket is one hour of aggregated power consumption for a device.
type UsageBucket struct {
	// Hour is the bucket start, formatted "YYYY-MM-DD HH:00".
	Hour string `json:"hour"`

	// AvgPower is the mean power over the bucket in watts.
	AvgPower float64 `json:"avg_power"`

	// Samples is the number of readings in the bucket.
	Samples int `json:"samples"`
}
