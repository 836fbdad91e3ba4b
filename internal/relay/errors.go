package relay

import "errors"

// Sentinel errors for relay command handling.
var (
	// ErrInvalidCommand indicates a command outside ON/OFF.
	// No side effects are performed for invalid commands.
	ErrInvalidCommand = errors.New("relay: invalid command")

	// ErrUnresolvableRelay indicates a relay identifier that maps to no
	// known device.
	ErrUnresolvableRelay = errors.New("relay: unresolvable relay identifier")
)
