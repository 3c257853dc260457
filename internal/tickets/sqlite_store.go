package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tickets (
	ticket_id           TEXT PRIMARY KEY,
	type                TEXT NOT NULL,
	name                TEXT NOT NULL,
	email               TEXT NOT NULL,
	phone               TEXT NOT NULL,
	service_type        TEXT,
	proposed_date       TEXT,
	proposed_time       TEXT,
	issue_type          TEXT,
	description         TEXT,
	calendar_event_link TEXT,
	created_at          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_email_created ON tickets (email, created_at);
`

// SQLiteStore keeps tickets in a local SQLite database for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tickets: open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open database and applies the schema.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		panic("tickets: sqlite db required")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("tickets: apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, t Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (
			ticket_id, type, name, email, phone, service_type, proposed_date, proposed_time,
			issue_type, description, calendar_event_link, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TicketID, string(t.Type), t.Name, t.Email, t.Phone,
		nullable(t.ServiceType), nullable(t.ProposedDate), nullable(t.ProposedTime),
		nullable(t.IssueType), nullable(t.Description), nullable(t.CalendarEventLink),
		t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("tickets: insert failed: %w", Classify(err))
	}
	return nil
}

func (s *SQLiteStore) FindRecent(ctx context.Context, email string, since time.Time) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticket_id, type, name, email, phone,
			COALESCE(service_type, ''), COALESCE(proposed_date, ''), COALESCE(proposed_time, ''),
			COALESCE(issue_type, ''), COALESCE(description, ''), COALESCE(calendar_event_link, ''),
			created_at
		FROM tickets
		WHERE email = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`, email, since.UTC())

	var (
		t    Ticket
		kind string
	)
	err := row.Scan(
		&t.TicketID, &kind, &t.Name, &t.Email, &t.Phone,
		&t.ServiceType, &t.ProposedDate, &t.ProposedTime,
		&t.IssueType, &t.Description, &t.CalendarEventLink,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tickets: find recent: %w", err)
	}
	t.Type = Type(kind)
	return &t, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
