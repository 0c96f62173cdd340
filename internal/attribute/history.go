package attribute

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// timestampLayout is fixed width so stored values sort chronologically.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// HistoryEntry is one persisted attribute change.
type HistoryEntry struct {
	ID        int64      `json:"id"`
	DeviceID  string     `json:"device_id"`
	Attribute string     `json:"attribute"`
	Kind      ChangeKind `json:"kind"`
	Value     any        `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
}

// HistoryRepository stores and retrieves attribute change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordChange persists a single attribute change.
	RecordChange(ctx context.Context, c Change) error

	// GetHistory returns recent changes for a device, newest first.
	// An empty attribute matches every attribute of the device.
	GetHistory(ctx context.Context, deviceID, attribute string, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes entries older than the given duration.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteHistoryRepository implements HistoryRepository on the
// attribute_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a repository on an open SQLite connection.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordChange inserts a change row. The value is stored as JSON.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - c: Change to persist (DeviceID and Attribute are required)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRepository) RecordChange(ctx context.Context, c Change) error {
	if c.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if c.Attribute == "" {
		return ErrInvalidName
	}
	if c.Kind == "" {
		c.Kind = ChangeUpdated
	}
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}

	valueJSON, err := json.Marshal(c.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO attribute_history (device_id, attribute, kind, value, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.DeviceID,
		c.Attribute,
		string(c.Kind),
		string(valueJSON),
		at.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting attribute history: %w", err)
	}
	return nil
}

// GetHistory returns recent history entries ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Device identifier
//   - attribute: Attribute filter, or "" for all attributes
//   - limit: Maximum entries (default 50, max 500)
//
// Returns:
//   - []HistoryEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, deviceID, attribute string, limit int) ([]HistoryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `SELECT id, device_id, attribute, kind, value, created_at
		 FROM attribute_history
		 WHERE device_id = ?`
	args := []any{deviceID}
	if attribute != "" {
		query += " AND attribute = ?"
		args = append(args, attribute)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attribute history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e         HistoryEntry
			kind      string
			valueJSON string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Attribute, &kind, &valueJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning attribute history: %w", err)
		}
		e.Kind = ChangeKind(kind)
		if err := json.Unmarshal([]byte(valueJSON), &e.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than now-olderThan.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM attribute_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting attribute history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	ts, err := time.Parse(timestampLayout, value)
	if err == nil {
		return ts, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
