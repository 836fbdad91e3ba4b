package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading archives a single panel telemetry report.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Dropped silently when the client is disconnected, since SQLite already
// holds the recent history.
//
// Example:
//
//	client.WriteSensorReading("ESP32-01", 228.4, 1.92, 438.5, "ON", time.Now())
func (c *Client) WriteSensorReading(deviceID string, voltage, current, power float64, relayStatus string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_data",
		map[string]string{
			"esp_id":       deviceID,
			"relay_status": relayStatus,
		},
		map[string]interface{}{
			"voltage": voltage,
			"current": current,
			"power":   power,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteRelayEvent archives a relay command outcome for audit dashboards.
//
// Parameters:
//   - deviceID: Target panel controller
//   - command: "ON" or "OFF"
//   - outcome: Coordinator outcome (published, publish_failed, skipped_unresolved)
func (c *Client) WriteRelayEvent(deviceID string, command string, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"relay_events",
		map[string]string{
			"esp_id":  deviceID,
			"command": command,
		},
		map[string]interface{}{
			"outcome": outcome,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
