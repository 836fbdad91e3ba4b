package mqtt

import "errors"

// Sentinel errors for MQTT operations.
// Callers can use errors.Is to distinguish failure modes.
var (
	// ErrNotConnected is returned when an operation requires an active
	// broker connection and there is none.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed is returned when the initial broker connection
	// cannot be established.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish does not complete
	// within the publish timeout.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscription cannot be
	// established with the broker.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe does not
	// complete within the timeout.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid qos level")

	// ErrInvalidTopic is returned for empty or oversized topics and
	// payloads.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
