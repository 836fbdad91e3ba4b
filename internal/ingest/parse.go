package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// MissingFieldsError lists the required fields absent from a payload.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// flexFloat unmarshals JSON numbers and numeric strings.
// Panel firmware varies: some builds quote numeric fields.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("parsing numeric string %q: %w", s, err)
		}
		f.value = v
		f.set = true
		return nil
	}
	if err := json.Unmarshal(data, &f.value); err != nil {
		return err
	}
	f.set = true
	return nil
}

// wireReading is the device JSON payload for sensor reports.
type wireReading struct {
	ESPID       string    `json:"esp_id"`
	Voltage     flexFloat `json:"voltage"`
	Current     flexFloat `json:"current"`
	Power       flexFloat `json:"power"`
	RelayStatus string    `json:"relay_status"`
	Timestamp   string    `json:"timestamp"`
}

// ParseReading decodes a sensor report payload into a Reading.
//
// deviceID is the fallback for a missing esp_id field (extracted from
// the topic on the MQTT path, the configured default on the HTTP path).
// A missing timestamp is stamped with the arrival time; relay_status
// defaults to OFF when absent, as some firmware builds only report it
// after the first relay command. Voltage, current, and power are
// required and reported together in a MissingFieldsError.
func ParseReading(deviceID string, payload []byte) (*telemetry.Reading, error) {
	return parseReading(deviceID, payload, false)
}

// ParseReadingStrict is ParseReading with relay_status required.
// The HTTP ingestion path rejects partial reports instead of
// defaulting; only the MQTT path tolerates older firmware.
func ParseReadingStrict(deviceID string, payload []byte) (*telemetry.Reading, error) {
	return parseReading(deviceID, payload, true)
}

func parseReading(deviceID string, payload []byte, requireStatus bool) (*telemetry.Reading, error) {
	var wire wireReading
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decoding sensor payload: %w", err)
	}

	var missing []string
	if !wire.Voltage.set {
		missing = append(missing, "voltage")
	}
	if !wire.Current.set {
		missing = append(missing, "current")
	}
	if !wire.Power.set {
		missing = append(missing, "power")
	}
	if requireStatus && wire.RelayStatus == "" {
		missing = append(missing, "relay_status")
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	espID := wire.ESPID
	if espID == "" {
		espID = deviceID
	}
	if espID == "" {
		return nil, &MissingFieldsError{Fields: []string{"esp_id"}}
	}

	status := telemetry.RelayStatus(strings.ToUpper(wire.RelayStatus))
	if wire.RelayStatus == "" {
		status = telemetry.RelayOff
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", telemetry.ErrInvalidStatus, wire.RelayStatus)
	}

	return &telemetry.Reading{
		ESPID:       espID,
		Voltage:     wire.Voltage.value,
		Current:     wire.Current.value,
		Power:       wire.Power.value,
		RelayStatus: status,
		Timestamp:   normaliseTimestamp(wire.Timestamp),
	}, nil
}

// normaliseTimestamp converts a device timestamp to RFC 3339 UTC so the
// stored text sorts lexicographically in chronological order. Devices
// behind an NTP offset report local zones; stored verbatim those would
// misorder against UTC rows. Missing or unparseable values are stamped
// with the arrival time.
func normaliseTimestamp(ts string) string {
	if ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// wireRelayEvent is the device JSON payload for relay state changes.
type wireRelayEvent struct {
	ESPID       string `json:"esp_id"`
	RelayStatus string `json:"relay_status"`
}

// ParseRelayEvent decodes a device-side relay state change.
//
// Bare "ON"/"OFF" payloads are accepted alongside the JSON form; older
// firmware publishes the raw state string.
func ParseRelayEvent(deviceID string, payload []byte) (string, telemetry.RelayStatus, error) {
	raw := telemetry.RelayStatus(strings.ToUpper(strings.TrimSpace(string(payload))))
	if raw.Valid() {
		if deviceID == "" {
			return "", "", &MissingFieldsError{Fields: []string{"esp_id"}}
		}
		return deviceID, raw, nil
	}

	var wire wireRelayEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		return "", "", fmt.Errorf("decoding relay event payload: %w", err)
	}

	espID := wire.ESPID
	if espID == "" {
		espID = deviceID
	}
	if espID == "" {
		return "", "", &MissingFieldsError{Fields: []string{"esp_id"}}
	}

	status := telemetry.RelayStatus(strings.ToUpper(wire.RelayStatus))
	if !status.Valid() {
		return "", "", fmt.Errorf("%w: %q", telemetry.ErrInvalidStatus, wire.RelayStatus)
	}

	return espID, status, nil
}
