// Package relay provides relay command coordination for PowerMon Core.
//
// A relay command fans out to three places: the device's MQTT command
// topic, the relay_status of the device's latest stored reading, and
// the relay_log audit trail. The Coordinator runs those steps as a
// best-effort saga with no rollback; the device's next telemetry report
// is the reconciliation point for any drift.
//
// # Key Types
//
//   - Resolver: Maps relay identifiers ("Relay-ESP32-01", "Relay-1")
//     to device identifiers
//   - Coordinator: Runs the command saga
//   - LogRepository: Append-only relay command audit trail
//   - Result: Accepted-command record with an explicit Outcome
//
// # Usage
//
//	resolver := relay.NewResolver(cfg.Devices.DefaultID)
//	logRepo := relay.NewSQLiteLogRepository(db.Conn())
//	coord := relay.NewCoordinator(mqttClient, store, logRepo, resolver, log)
//
//	result, err := coord.IssueCommand(ctx, relay.Command{
//	    RelayID:     "Relay-ESP32-01",
//	    Command:     "ON",
//	    Reason:      "MANUAL",
//	    InitiatedBy: "user",
//	})
package relay
