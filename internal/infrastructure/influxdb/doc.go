// Package influxdb provides InfluxDB connectivity for PowerMon Core.
//
// It wraps the official influxdb-client-go v2 library for long-horizon
// archival of panel telemetry. SQLite keeps the bounded recent history;
// InfluxDB keeps the full time series for charts and usage analysis.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "powermon",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("ESP32-01", 228.4, 1.92, 438.5, "ON", time.Now())
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. A disabled integration returns ErrDisabled from Connect so
// the caller can run without archival.
package influxdb
