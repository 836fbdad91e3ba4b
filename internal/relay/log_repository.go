package relay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// List pagination bounds.
const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// LogRepository defines the interface for relay log persistence.
type LogRepository interface {
	// Insert appends a log entry. The ID and CreatedAt are generated
	// if empty.
	Insert(ctx context.Context, entry *LogEntry) error

	// List returns recent log entries, newest first.
	List(ctx context.Context, limit int) ([]LogEntry, error)
}

// SQLiteLogRepository stores relay log entries in SQLite.
type SQLiteLogRepository struct {
	db *sql.DB
}

// NewSQLiteLogRepository creates a new relay log repository.
func NewSQLiteLogRepository(db *sql.DB) *SQLiteLogRepository {
	return &SQLiteLogRepository{db: db}
}

// Insert appends a log entry.
func (r *SQLiteLogRepository) Insert(ctx context.Context, entry *LogEntry) error {
	if entry.ID == "" {
		entry.ID = "rly-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO relay_log (id, esp_id, relay_id, command, reason, initiated_by, new_status, delivered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ESPID, entry.RelayID,
		entry.Command, entry.Reason, entry.InitiatedBy,
		entry.NewStatus, boolToInt(entry.Delivered),
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting relay log entry: %w", err)
	}

	return nil
}

// List returns recent log entries, newest first.
func (r *SQLiteLogRepository) List(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, esp_id, relay_id, command, reason, initiated_by, new_status, delivered, created_at
		 FROM relay_log
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relay log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var delivered int
		var createdAt string

		if err := rows.Scan(&e.ID, &e.ESPID, &e.RelayID,
			&e.Command, &e.Reason, &e.InitiatedBy,
			&e.NewStatus, &delivered, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning relay log entry: %w", err)
		}

		e.Delivered = delivered != 0
		e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing relay log timestamp %q: %w", createdAt, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relay log: %w", err)
	}

	if entries == nil {
		entries = []LogEntry{}
	}

	return entries, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
