package telemetry

import "errors"

// Sentinel errors for telemetry operations.
var (
	// ErrNoReadings indicates the device has no stored readings.
	ErrNoReadings = errors.New("telemetry: no readings for device")

	// ErrInvalidStatus indicates a relay status outside ON/OFF.
	ErrInvalidStatus = errors.New("telemetry: invalid relay status")
)
