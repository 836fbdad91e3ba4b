// Package ingest moves device telemetry from MQTT into storage.
//
// The pipeline subscribes to iot/sensor/+ and iot/relay/+, parses each
// payload on the paho callback goroutine, and hands the result to a
// bounded queue drained by a fixed worker pool. Workers write to the
// SQLite store, feed the in-memory history cache, and optionally mirror
// readings to InfluxDB and the dashboard WebSocket hub.
//
// # Backpressure
//
// The queue rejects new messages when full (drop + warning). Telemetry
// is a rolling signal: under sustained overload the freshest readings
// matter and a backlog of stale ones does not.
//
// # Failure isolation
//
// Malformed payloads, missing fields, and store failures are logged and
// counted per message. Nothing propagates to the subscription loop, so
// one bad device cannot take down ingestion for the rest.
package ingest
