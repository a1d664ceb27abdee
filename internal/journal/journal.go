package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/database"
)

// EventKind classifies a journal entry.
type EventKind string

const (
	// KindPanic: the watchdog escalated out of normal operation.
	KindPanic EventKind = "panic"

	// KindBlackoutForced: the forced blackout fan-out completed.
	KindBlackoutForced EventKind = "blackout-forced"

	// KindRecovery: an authorised operator recovered the show.
	KindRecovery EventKind = "recovery"

	// KindDegraded: a device crossed the failure threshold.
	KindDegraded EventKind = "degraded"
)

// Event is one safety-relevant occurrence in the show's history.
type Event struct {
	ID        string
	Kind      EventKind
	DeviceID  string
	Reason    string
	Actor     string
	CreatedAt time.Time
}

// Repository persists events to the journal table.
//
// The table is append-only: entries are never updated or deleted, so
// the journal stays trustworthy as an incident record.
type Repository struct {
	db *database.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	device_id  TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	actor      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_created_at ON journal(created_at);
`

// NewRepository creates the journal table if needed and returns the
// repository.
func NewRepository(ctx context.Context, db *database.DB) (*Repository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Record appends one event. A missing ID or timestamp is filled in.
func (r *Repository) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (id, kind, device_id, reason, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.DeviceID, e.Reason, e.Actor, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording journal event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, device_id, reason, actor, created_at
		 FROM journal ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.DeviceID, &e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return events, nil
}

// CountByKind returns how many events of one kind exist, for status
// reporting.
func (r *Repository) CountByKind(ctx context.Context, kind EventKind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal WHERE kind = ?`, string(kind)).Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("counting journal events: %w", err)
	}
	return n, nil
}
