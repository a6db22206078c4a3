package diagnostic

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteRepository keeps events in the diagnostic_events table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create stores e, filling in ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	var details *string
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling event details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO diagnostic_events (id, action, entity_type, entity_id, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType, nullable(e.EntityID), e.Source, details,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting diagnostic event: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns the events matching f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	f = f.normalised()

	var conds []string
	var args []any
	for col, v := range map[string]string{
		"action":      f.Action,
		"entity_type": f.EntityType,
		"entity_id":   f.EntityID,
	} {
		if v != "" {
			conds = append(conds, col+" = ?")
			args = append(args, v)
		}
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	//nolint:gosec // WHERE holds only fixed column names and placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnostic_events "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting diagnostic events: %w", err)
	}

	//nolint:gosec // WHERE holds only fixed column names and placeholders
	query := "SELECT id, action, entity_type, entity_id, source, details, created_at FROM diagnostic_events " +
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostic events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating diagnostic events: %w", err)
	}

	return &Page{Events: events, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var e Event
	var entityID, details sql.NullString
	var createdAt string
	if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &entityID, &e.Source, &details, &createdAt); err != nil {
		return Event{}, fmt.Errorf("scanning diagnostic event: %w", err)
	}
	e.EntityID = entityID.String
	if details.Valid && details.String != "" {
		_ = json.Unmarshal([]byte(details.String), &e.Details) //nolint:errcheck // details are written by Create
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Event{}, fmt.Errorf("parsing event timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
