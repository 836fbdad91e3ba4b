package relay

import (
	"fmt"
	"strings"
)

// relayIDPrefix is the naming convention for relay identifiers.
const relayIDPrefix = "Relay-"

// Resolver maps relay identifiers to the device that owns the relay.
//
// Resolution is total and explicit:
//   - "Relay-ESP32-xx" strips the prefix and targets "ESP32-xx"
//   - Bare numbered relays ("Relay-1") target the configured default
//     device, for single-panel installations that never set esp_id
//   - Anything else is ErrUnresolvableRelay
type Resolver struct {
	defaultDevice string
}

// NewResolver creates a resolver with the given default device
// (typically cfg.Devices.DefaultID).
func NewResolver(defaultDevice string) *Resolver {
	return &Resolver{defaultDevice: defaultDevice}
}

// Resolve returns the device identifier for a relay identifier.
func (r *Resolver) Resolve(relayID string) (string, error) {
	rest, ok := strings.CutPrefix(relayID, relayIDPrefix)
	if !ok || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrUnresolvableRelay, relayID)
	}

	if strings.HasPrefix(rest, "ESP32-") {
		return rest, nil
	}

	if isDigits(rest) {
		return r.defaultDevice, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnresolvableRelay, relayID)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
