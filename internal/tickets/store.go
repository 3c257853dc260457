package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when no ticket matches a lookup.
	ErrNotFound = errors.New("tickets: not found")
	// ErrPermission marks inserts rejected by grants or row-level security.
	ErrPermission = errors.New("tickets: permission denied")
	// ErrSchema marks inserts rejected because the table does not match the payload.
	ErrSchema = errors.New("tickets: schema mismatch")
	// ErrDuplicateID marks inserts whose ticket id is already taken.
	ErrDuplicateID = errors.New("tickets: duplicate ticket id")
)

// Store persists tickets.
type Store interface {
	Insert(ctx context.Context, t Ticket) error
	// FindRecent returns the newest ticket for email created at or after since.
	FindRecent(ctx context.Context, email string, since time.Time) (*Ticket, error)
}

// Postgres SQLSTATE codes mapped to error classes.
var (
	permissionCodes = map[string]struct{}{
		"42501": {}, // insufficient_privilege, also raised by RLS policies
	}
	schemaCodes = map[string]struct{}{
		"42P01": {}, // undefined_table
		"42703": {}, // undefined_column
		"42804": {}, // datatype_mismatch
		"23502": {}, // not_null_violation
	}
	duplicateCodes = map[string]struct{}{
		"23505": {}, // unique_violation
	}
)

// Classify wraps err with ErrPermission, ErrSchema or ErrDuplicateID when the driver
// error says so.
// Unrecognised errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermission) || errors.Is(err, ErrSchema) || errors.Is(err, ErrDuplicateID) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := permissionCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", ErrPermission, err)
		}
		if _, ok := schemaCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", ErrSchema, err)
		}
		if _, ok := duplicateCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", ErrDuplicateID, err)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%w: %w", ErrPermission, err)
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %w", ErrSchema, err)
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %w", ErrDuplicateID, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "row-level security"), strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"),
		strings.Contains(msg, "has no column named"):
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return err
}

// ErrorClass names the class of a dispatch error for logs, metrics and job records.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate"
	default:
		return "generic"
	}
}
