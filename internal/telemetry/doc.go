// Package telemetry provides telemetry storage for PowerMon Core.
//
// It is the single gateway between the rest of the system and the
// sensor_data, alerts, and usage views of the SQLite database, plus a
// bounded in-memory history window per device for charting.
//
// # Key Types
//
//   - Reading: A single telemetry report from a panel controller
//   - RelayStatus: Relay state enum (ON/OFF)
//   - Alert: An operator-visible condition raised against a panel
//   - Store: Persistence interface (SQLiteStore is the real one)
//   - HistoryCache: Per-device bounded FIFO window of recent readings
//
// # Usage
//
//	store := telemetry.NewSQLiteStore(db.Conn())
//	history := telemetry.NewHistoryCache(cfg.Devices.HistorySize)
//
//	r := &telemetry.Reading{
//	    ESPID:       "ESP32-01",
//	    Voltage:     228.4,
//	    Current:     1.92,
//	    Power:       438.5,
//	    RelayStatus: telemetry.RelayOn,
//	    Timestamp:   time.Now().UTC().Format(time.RFC3339),
//	}
//	if err := store.InsertReading(ctx, r); err != nil {
//	    return err
//	}
//	history.Record(*r)
//
//	latest, err := store.LatestFor(ctx, "ESP32-01")
//
// # Consistency
//
// A reading's relay_status may be overwritten on the latest row by the
// relay command coordinator. Between that overwrite and the device's
// next report the stored status is an expectation, not a confirmed
// device state. Device reports always win on arrival.
//
// # Thread Safety
//
// SQLiteStore holds no in-process lock across calls; the single-writer
// SQLite pool serialises writes. HistoryCache is guarded by a
// read-write mutex and safe for concurrent use.
package telemetry
