package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore writes tickets to the tickets table through pgx.
type PostgresStore struct {
	pool rowQuerier
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("tickets: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("tickets: exec required")
	}
	return &PostgresStore{pool: exec}
}

const insertTicketSQL = `
	INSERT INTO tickets (
		ticket_id, type, name, email, phone, service_type, proposed_date, proposed_time,
		issue_type, description, calendar_event_link, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Insert persists t. Failures are classified with Classify.
func (s *PostgresStore) Insert(ctx context.Context, t Ticket) error {
	_, err := s.pool.Exec(ctx, insertTicketSQL,
		t.TicketID, string(t.Type), t.Name, t.Email, t.Phone,
		nullable(t.ServiceType), nullable(t.ProposedDate), nullable(t.ProposedTime),
		nullable(t.IssueType), nullable(t.Description), nullable(t.CalendarEventLink),
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("tickets: insert failed: %w", Classify(err))
	}
	return nil
}

const findRecentSQL = `
	SELECT ticket_id, type, name, email, phone,
		COALESCE(service_type, ''), COALESCE(proposed_date, ''), COALESCE(proposed_time, ''),
		COALESCE(issue_type, ''), COALESCE(description, ''), COALESCE(calendar_event_link, ''),
		created_at
	FROM tickets
	WHERE email = $1 AND created_at >= $2
	ORDER BY created_at DESC
	LIMIT 1
`

func (s *PostgresStore) FindRecent(ctx context.Context, email string, since time.Time) (*Ticket, error) {
	var (
		t       Ticket
		kind    string
		created time.Time
	)
	err := s.pool.QueryRow(ctx, findRecentSQL, email, since).Scan(
		&t.TicketID, &kind, &t.Name, &t.Email, &t.Phone,
		&t.ServiceType, &t.ProposedDate, &t.ProposedTime,
		&t.IssueType, &t.Description, &t.CalendarEventLink,
		&created,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tickets: find recent: %w", err)
	}
	t.Type = Type(kind)
	t.CreatedAt = created
	return &t, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
