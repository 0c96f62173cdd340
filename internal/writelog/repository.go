// Package writelog records the outcome of every parameter write sent through
// a device write queue, for the write history endpoint.
package writelog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome statuses.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
	StatusCleared = "cleared"
)

// Entry is one settled write request.
type Entry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	DeviceID    string    `json:"device_id"`
	ParameterID int       `json:"parameter_id"`
	Value       float64   `json:"value"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	DeviceID string // optional
	Status   string // optional: applied, failed, cleared
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines write log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the write log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a write log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Create inserts an entry. RequestID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.RequestID == "" {
		e.RequestID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Source == "" {
		e.Source = "api"
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO write_log (request_id, device_id, parameter_id, value, source, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.DeviceID, e.ParameterID, e.Value, e.Source, e.Status,
		nullableString(e.Error), e.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting write log entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM write_log %s", where) //nolint:gosec // parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting write log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // parameterised conditions
		"SELECT id, request_id, device_id, parameter_id, value, source, status, error, created_at FROM write_log %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying write log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var errText sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.DeviceID, &e.ParameterID, &e.Value,
			&e.Source, &e.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning write log entry: %w", err)
		}
		if errText.Valid {
			e.Error = errText.String
		}
		t, err := time.Parse(timestampLayout, createdAt)
		if err != nil {
			t, err = time.Parse(time.RFC3339Nano, createdAt)
			if err != nil {
				return nil, fmt.Errorf("parsing write log timestamp %q: %w", createdAt, err)
			}
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating write log: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}
