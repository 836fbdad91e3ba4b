package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store defines the interface for telemetry persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Store interface {
	// InsertReading appends a reading to the store.
	// Duplicate timestamps are accepted; the later insert wins any
	// latest-reading tie via the rowid tiebreak.
	InsertReading(ctx context.Context, r *Reading) error

	// LatestFor retrieves the most recent reading for a device.
	// Returns ErrNoReadings if the device has never reported.
	LatestFor(ctx context.Context, deviceID string) (*Reading, error)

	// AllLatest retrieves exactly one reading per distinct device,
	// each that device's most recent report.
	AllLatest(ctx context.Context) ([]Reading, error)

	// UpdateRelayStatus overwrites relay_status on the device's latest
	// reading. A device with no readings is a no-op, never an error,
	// and never creates a synthetic reading.
	UpdateRelayStatus(ctx context.Context, deviceID string, status RelayStatus) error

	// InsertAlert appends an alert.
	InsertAlert(ctx context.Context, a *Alert) error

	// ListAlerts retrieves all alerts, newest first.
	ListAlerts(ctx context.Context) ([]Alert, error)

	// UsageSince aggregates per-hour average power and sample counts
	// for a device from the given instant onwards.
	UsageSince(ctx context.Context, deviceID string, since time.Time) ([]UsageBucket, error)
}

// SQLiteStore implements Store using SQLite.
//
// No in-process lock is held across store calls; the single-writer
// SQLite pool is the serialization point.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
// The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InsertReading appends a reading to sensor_data.
func (s *SQLiteStore) InsertReading(ctx context.Context, r *Reading) error {
	if !r.RelayStatus.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.RelayStatus)
	}

	query := `
		INSERT INTO sensor_data (esp_id, voltage, current, power, relay_status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		r.ESPID,
		r.Voltage,
		r.Current,
		r.Power,
		string(r.RelayStatus),
		r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	r.ID = id

	return nil
}

// LatestFor retrieves the most recent reading for a device.
func (s *SQLiteStore) LatestFor(ctx context.Context, deviceID string) (*Reading, error) {
	query := `
		SELECT id, esp_id, voltage, current, power, relay_status, timestamp
		FROM sensor_data
		WHERE esp_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, deviceID)
	reading, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReadings
		}
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	return reading, nil
}

// AllLatest retrieves the most recent reading for every known device.
//
// The correlated subquery selects each device's single latest row, so
// the result is never biased toward devices that report frequently.
func (s *SQLiteStore) AllLatest(ctx context.Context) ([]Reading, error) {
	query := `
		SELECT s.id, s.esp_id, s.voltage, s.current, s.power, s.relay_status, s.timestamp
		FROM sensor_data s
		WHERE s.id = (
			SELECT id FROM sensor_data
			WHERE esp_id = s.esp_id
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)
		ORDER BY s.esp_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying latest readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return readings, nil
}

// UpdateRelayStatus overwrites relay_status on the device's latest reading.
func (s *SQLiteStore) UpdateRelayStatus(ctx context.Context, deviceID string, status RelayStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := `
		UPDATE sensor_data
		SET relay_status = ?
		WHERE id = (
			SELECT id FROM sensor_data
			WHERE esp_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)`

	// Zero rows affected means the device has never reported.
	// That is a no-op, not an error.
	_, err := s.db.ExecContext(ctx, query, string(status), deviceID)
	if err != nil {
		return fmt.Errorf("updating relay status: %w", err)
	}

	return nil
}

// InsertAlert appends an alert.
func (s *SQLiteStore) InsertAlert(ctx context.Context, a *Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (alert_type, esp_id, description, suggested_action, created_at)
		VALUES (?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		a.AlertType,
		a.ESPID,
		a.Description,
		a.SuggestedAction,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading alert insert id: %w", err)
	}
	a.ID = id

	return nil
}

// ListAlerts retrieves all alerts, newest first.
func (s *SQLiteStore) ListAlerts(ctx context.Context) ([]Alert, error) {
	query := `
		SELECT id, alert_type, esp_id, description, suggested_action, created_at
		FROM alerts
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var createdAt string
		if err := rows.Scan(&a.ID, &a.AlertType, &a.ESPID, &a.Description, &a.SuggestedAction, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alert created_at: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return alerts, nil
}

// UsageSince aggregates per-hour average power for a device.
//
// Timestamps are stored as RFC 3339 UTC text, so lexicographic
// comparison and strftime bucketing both follow chronological order.
func (s *SQLiteStore) UsageSince(ctx context.Context, deviceID string, since time.Time) ([]UsageBucket, error) {
	query := `
		SELECT strftime('%Y-%m-%d %H:00', timestamp) AS hour,
			AVG(power) AS avg_power,
			COUNT(*) AS samples
		FROM sensor_data
		WHERE esp_id = ? AND timestamp >= ?
		GROUP BY hour
		ORDER BY hour`

	rows, err := s.db.QueryContext(ctx, query, deviceID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	defer rows.Close()

	var buckets []UsageBucket
	for rows.Next() {
		var b UsageBucket
		if err := rows.Scan(&b.Hour, &b.AvgPower, &b.Samples); err != nil {
			return nil, fmt.Errorf("scanning usage bucket: %w", err)
		}
		buckets = append(buckets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage buckets: %w", err)
	}

	return buckets, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReading scans a row or rows result into a Reading.
func scanReading(scanner rowScanner) (*Reading, error) {
	var r Reading
	var status string

	err := scanner.Scan(
		&r.ID,
		&r.ESPID,
		&r.Voltage,
		&r.Current,
		&r.Power,
		&status,
		&r.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	r.RelayStatus = RelayStatus(status)
	return &r, nil
}
