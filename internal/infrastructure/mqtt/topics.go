package mqtt

import "fmt"

// Topic prefixes for the PowerMon MQTT hierarchy.
//
// Panel controllers publish sensor reports and relay events under the iot/
// prefix, one topic per device:
//
//	iot/sensor/{esp_id}   - periodic telemetry reports
//	iot/relay/{esp_id}    - device-side relay state change events
//	iot/command/{esp_id}  - relay commands from the core to the device
const (
	// TopicPrefix is the base for all device topics.
	TopicPrefix = "iot"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "iot/system"
)

// Topics provides builders for PowerMon MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("ESP32-01")
//	// Returns: "iot/command/ESP32-01"
type Topics struct{}

// SensorReport returns the topic a device publishes telemetry reports on.
//
// Example: iot/sensor/ESP32-01
func (Topics) SensorReport(deviceID string) string {
	return fmt.Sprintf("%s/sensor/%s", TopicPrefix, deviceID)
}

// RelayEvent returns the topic a device publishes relay state changes on.
//
// Example: iot/relay/ESP32-01
func (Topics) RelayEvent(deviceID string) string {
	return fmt.Sprintf("%s/relay/%s", TopicPrefix, deviceID)
}

// DeviceCommand returns the topic for relay commands to a device.
//
// Example: iot/command/ESP32-01
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the core's status topic (online/offline, LWT).
//
// Example: iot/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllSensorReports returns a pattern matching sensor reports from all devices.
//
// Pattern: iot/sensor/+
func (Topics) AllSensorReports() string {
	return fmt.Sprintf("%s/sensor/+", TopicPrefix)
}

// AllRelayEvents returns a pattern matching relay events from all devices.
//
// Pattern: iot/relay/+
func (Topics) AllRelayEvents() string {
	return fmt.Sprintf("%s/relay/+", TopicPrefix)
}

// DeviceFromTopic extracts the device identifier from a per-device topic.
//
// Returns the last topic segment: "iot/sensor/ESP32-01" -> "ESP32-01".
// Returns "" for topics without a device segment.
func DeviceFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return ""
}
