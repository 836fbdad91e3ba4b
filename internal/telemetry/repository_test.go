package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the telemetry tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection, matching the production pool. A second connection
	// to :memory: would open a separate empty database.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE sensor_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			esp_id TEXT NOT NULL,
			voltage REAL NOT NULL,
			current REAL NOT NULL,
			power REAL NOT NULL,
			relay_status TEXT NOT NULL CHECK (relay_status IN ('ON', 'OFF')),
			timestamp TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_sensor_data_device ON sensor_data(esp_id, timestamp DESC);

		CREATE TABLE alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_type TEXT NOT NULL,
			esp_id TEXT NOT NULL,
			description TEXT NOT NULL,
			suggested_action TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testReading creates a reading for testing.
func testReading(espID string, power float64, ts string) *Reading {
	return &Reading{
		ESPID:       espID,
		Voltage:     228.4,
		Current:     power / 228.4,
		Power:       power,
		RelayStatus: RelayOn,
		Timestamp:   ts,
	}
}

func TestSQLiteStore_InsertReading(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	t.Run("inserts reading and sets ID", func(t *testing.T) {
		r := testReading("ESP32-01", 438.5, "2026-08-20T10:00:00Z")

		if err := store.InsertReading(ctx, r); err != nil {
			t.Fatalf("InsertReading() error = %v", err)
		}
		if r.ID == 0 {
			t.Error("InsertReading() did not set ID")
		}
	})

	t.Run("rejects invalid relay status", func(t *testing.T) {
		r := testReading("ESP32-01", 438.5, "2026-08-20T10:01:00Z")
		r.RelayStatus = "MAYBE"

		err := store.InsertReading(ctx, r)
		if !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("InsertReading() error = %v, want ErrInvalidStatus", err)
		}
	})

	t.Run("accepts duplicate timestamps", func(t *testing.T) {
		r1 := testReading("ESP32-02", 100, "2026-08-20T10:00:00Z")
		r2 := testReading("ESP32-02", 200, "2026-08-20T10:00:00Z")

		if err := store.InsertReading(ctx, r1); err != nil {
			t.Fatalf("InsertReading() first error = %v", err)
		}
		if err := store.InsertReading(ctx, r2); err != nil {
			t.Fatalf("InsertReading() second error = %v", err)
		}

		// Later insert wins the tie.
		latest, err := store.LatestFor(ctx, "ESP32-02")
		if err != nil {
			t.Fatalf("LatestFor() error = %v", err)
		}
		if latest.Power != 200 {
			t.Errorf("latest Power = %v, want 200", latest.Power)
		}
	})
}

func TestSQLiteStore_LatestFor(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	t.Run("returns ErrNoReadings for unknown device", func(t *testing.T) {
		_, err := store.LatestFor(ctx, "ESP32-99")
		if !errors.Is(err, ErrNoReadings) {
			t.Errorf("LatestFor() error = %v, want ErrNoReadings", err)
		}
	})

	t.Run("returns newest reading by timestamp", func(t *testing.T) {
		// Inserted out of order on purpose.
		readings := []*Reading{
			testReading("ESP32-01", 200, "2026-08-20T10:05:00Z"),
			testReading("ESP32-01", 100, "2026-08-20T10:00:00Z"),
			testReading("ESP32-01", 300, "2026-08-20T10:10:00Z"),
		}
		for _, r := range readings {
			if err := store.InsertReading(ctx, r); err != nil {
				t.Fatalf("InsertReading() error = %v", err)
			}
		}

		latest, err := store.LatestFor(ctx, "ESP32-01")
		if err != nil {
			t.Fatalf("LatestFor() error = %v", err)
		}
		if latest.Power != 300 {
			t.Errorf("latest Power = %v, want 300", latest.Power)
		}
		if latest.Timestamp != "2026-08-20T10:10:00Z" {
			t.Errorf("latest Timestamp = %q, want 2026-08-20T10:10:00Z", latest.Timestamp)
		}
	})
}

func TestSQLiteStore_AllLatest(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	t.Run("empty store returns no readings", func(t *testing.T) {
		readings, err := store.AllLatest(ctx)
		if err != nil {
			t.Fatalf("AllLatest() error = %v", err)
		}
		if len(readings) != 0 {
			t.Errorf("AllLatest() returned %d readings, want 0", len(readings))
		}
	})

	t.Run("one row per device regardless of report volume", func(t *testing.T) {
		// ESP32-01 is chatty, ESP32-02 reported once.
		for i, ts := range []string{
			"2026-08-20T10:00:00Z",
			"2026-08-20T10:01:00Z",
			"2026-08-20T10:02:00Z",
			"2026-08-20T10:03:00Z",
		} {
			r := testReading("ESP32-01", float64(100+i), ts)
			if err := store.InsertReading(ctx, r); err != nil {
				t.Fatalf("InsertReading() error = %v", err)
			}
		}
		quiet := testReading("ESP32-02", 50, "2026-08-20T09:00:00Z")
		if err := store.InsertReading(ctx, quiet); err != nil {
			t.Fatalf("InsertReading() error = %v", err)
		}

		readings, err := store.AllLatest(ctx)
		if err != nil {
			t.Fatalf("AllLatest() error = %v", err)
		}
		if len(readings) != 2 {
			t.Fatalf("AllLatest() returned %d readings, want 2", len(readings))
		}

		// Sorted by esp_id.
		if readings[0].ESPID != "ESP32-01" || readings[0].Power != 103 {
			t.Errorf("readings[0] = %s/%v, want ESP32-01/103", readings[0].ESPID, readings[0].Power)
		}
		if readings[1].ESPID != "ESP32-02" || readings[1].Power != 50 {
			t.Errorf("readings[1] = %s/%v, want ESP32-02/50", readings[1].ESPID, readings[1].Power)
		}
	})
}

func TestSQLiteStore_UpdateRelayStatus(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	t.Run("updates only the latest reading", func(t *testing.T) {
		old := testReading("ESP32-01", 100, "2026-08-20T10:00:00Z")
		newest := testReading("ESP32-01", 200, "2026-08-20T10:05:00Z")
		for _, r := range []*Reading{old, newest} {
			if err := store.InsertReading(ctx, r); err != nil {
				t.Fatalf("InsertReading() error = %v", err)
			}
		}

		if err := store.UpdateRelayStatus(ctx, "ESP32-01", RelayOff); err != nil {
			t.Fatalf("UpdateRelayStatus() error = %v", err)
		}

		latest, err := store.LatestFor(ctx, "ESP32-01")
		if err != nil {
			t.Fatalf("LatestFor() error = %v", err)
		}
		if latest.RelayStatus != RelayOff {
			t.Errorf("latest RelayStatus = %q, want OFF", latest.RelayStatus)
		}

		// The older reading is untouched.
		var oldStatus string
		err = db.QueryRow("SELECT relay_status FROM sensor_data WHERE id = ?", old.ID).Scan(&oldStatus)
		if err != nil {
			t.Fatalf("querying old reading: %v", err)
		}
		if oldStatus != "ON" {
			t.Errorf("old reading relay_status = %q, want ON", oldStatus)
		}
	})

	t.Run("no-op for device with no readings", func(t *testing.T) {
		if err := store.UpdateRelayStatus(ctx, "ESP32-99", RelayOn); err != nil {
			t.Errorf("UpdateRelayStatus() error = %v, want nil", err)
		}

		// Must not create a synthetic reading.
		_, err := store.LatestFor(ctx, "ESP32-99")
		if !errors.Is(err, ErrNoReadings) {
			t.Errorf("LatestFor() error = %v, want ErrNoReadings", err)
		}
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		err := store.UpdateRelayStatus(ctx, "ESP32-01", "BROKEN")
		if !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("UpdateRelayStatus() error = %v, want ErrInvalidStatus", err)
		}
	})
}

// Inbound sensor reports and relay commands hit the store from
// different goroutines; whichever lands last must win, and a reader
// must never observe a torn row.
func TestSQLiteStore_ConcurrentInsertAndStatusUpdate(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	if err := store.InsertReading(ctx, testReading("ESP32-01", 100, "2026-08-20T09:59:00Z")); err != nil {
		t.Fatalf("InsertReading() error = %v", err)
	}

	const rounds = 25
	errs := make(chan error, rounds*2)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			ts := fmt.Sprintf("2026-08-20T10:00:%02dZ", i)
			errs <- store.InsertReading(ctx, testReading("ESP32-01", float64(100+i), ts))
		}()
		go func() {
			defer wg.Done()
			status := RelayOn
			if i%2 == 0 {
				status = RelayOff
			}
			errs <- store.UpdateRelayStatus(ctx, "ESP32-01", status)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write error = %v", err)
		}
	}

	// Whatever the interleaving, the latest row is the newest insert
	// and carries a well-formed status.
	latest, err := store.LatestFor(ctx, "ESP32-01")
	if err != nil {
		t.Fatalf("LatestFor() error = %v", err)
	}
	if latest.Timestamp != fmt.Sprintf("2026-08-20T10:00:%02dZ", rounds-1) {
		t.Errorf("latest Timestamp = %q, want the newest insert", latest.Timestamp)
	}
	if !latest.RelayStatus.Valid() {
		t.Errorf("latest RelayStatus = %q, want ON or OFF", latest.RelayStatus)
	}

	// The last arrival wins outright.
	if err := store.UpdateRelayStatus(ctx, "ESP32-01", RelayOff); err != nil {
		t.Fatalf("UpdateRelayStatus() error = %v", err)
	}
	latest, err = store.LatestFor(ctx, "ESP32-01")
	if err != nil {
		t.Fatalf("LatestFor() error = %v", err)
	}
	if latest.RelayStatus != RelayOff {
		t.Errorf("latest RelayStatus = %q, want OFF after final update", latest.RelayStatus)
	}
}

func TestSQLiteStore_Alerts(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	t.Run("insert sets ID and created_at", func(t *testing.T) {
		a := &Alert{
			AlertType:       "OVERVOLTAGE",
			ESPID:           "ESP32-01",
			Description:     "Voltage above 250V",
			SuggestedAction: "Check supply",
		}

		if err := store.InsertAlert(ctx, a); err != nil {
			t.Fatalf("InsertAlert() error = %v", err)
		}
		if a.ID == 0 {
			t.Error("InsertAlert() did not set ID")
		}
		if a.CreatedAt.IsZero() {
			t.Error("InsertAlert() did not set CreatedAt")
		}
	})

	t.Run("list returns newest first", func(t *testing.T) {
		older := &Alert{
			AlertType: "POWER_LOSS", ESPID: "ESP32-02",
			Description: "No power draw",
			CreatedAt:   time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC),
		}
		if err := store.InsertAlert(ctx, older); err != nil {
			t.Fatalf("InsertAlert() error = %v", err)
		}

		alerts, err := store.ListAlerts(ctx)
		if err != nil {
			t.Fatalf("ListAlerts() error = %v", err)
		}
		if len(alerts) != 2 {
			t.Fatalf("ListAlerts() returned %d alerts, want 2", len(alerts))
		}
		if alerts[0].AlertType != "OVERVOLTAGE" {
			t.Errorf("alerts[0].AlertType = %q, want OVERVOLTAGE", alerts[0].AlertType)
		}
		if alerts[1].AlertType != "POWER_LOSS" {
			t.Errorf("alerts[1].AlertType = %q, want POWER_LOSS", alerts[1].AlertType)
		}
	})
}

func TestSQLiteStore_UsageSince(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	// Two readings in the 10:00 hour, one in 11:00, one before the window.
	readings := []*Reading{
		testReading("ESP32-01", 100, "2026-08-20T10:10:00Z"),
		testReading("ESP32-01", 300, "2026-08-20T10:50:00Z"),
		testReading("ESP32-01", 500, "2026-08-20T11:15:00Z"),
		testReading("ESP32-01", 999, "2026-08-20T08:00:00Z"),
		testReading("ESP32-02", 42, "2026-08-20T10:30:00Z"),
	}
	for _, r := range readings {
		if err := store.InsertReading(ctx, r); err != nil {
			t.Fatalf("InsertReading() error = %v", err)
		}
	}

	since := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	buckets, err := store.UsageSince(ctx, "ESP32-01", since)
	if err != nil {
		t.Fatalf("UsageSince() error = %v", err)
	}

	if len(buckets) != 2 {
		t.Fatalf("UsageSince() returned %d buckets, want 2", len(buckets))
	}
	if buckets[0].Hour != "2026-08-20 10:00" {
		t.Errorf("buckets[0].Hour = %q, want 2026-08-20 10:00", buckets[0].Hour)
	}
	if buckets[0].AvgPower != 200 {
		t.Errorf("buckets[0].AvgPower = %v, want 200", buckets[0].AvgPower)
	}
	if buckets[0].Samples != 2 {
		t.Errorf("buckets[0].Samples = %d, want 2", buckets[0].Samples)
	}
	if buckets[1].Hour != "2026-08-20 11:00" {
		t.Errorf("buckets[1].Hour = %q, want 2026-08-20 11:00", buckets[1].Hour)
	}
	if buckets[1].Samples != 1 {
		t.Errorf("buckets[1].Samples = %d, want 1", buckets[1].Samples)
	}
}
