// Package mqtt provides MQTT client connectivity for PowerMon Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// PowerMon uses MQTT as the channel between the Core and the ESP32 panel
// controllers. Devices publish telemetry and relay events under iot/ and
// receive relay commands on their per-device command topic.
//
//	ESP32 Panels ↔ MQTT Broker ↔ PowerMon Core
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to telemetry from all panels
//	err = client.Subscribe(mqtt.Topics{}.AllSensorReports(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish relay command
//	topic := mqtt.Topics{}.DeviceCommand("ESP32-01")
//	client.Publish(topic, []byte("ON"), 1, false)
package mqtt
