// Package calendar checks slot availability and books events for confirmed appointments.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrSlotUnavailable is returned by CreateEvent implementations that refuse overlapping bookings.
var ErrSlotUnavailable = errors.New("calendar: slot unavailable")

// Event describes the appointment to book.
type Event struct {
	Title        string
	Description  string
	Start        time.Time
	End          time.Time
	ContactEmail string
}

// Service is the calendar capability used during dispatch.
type Service interface {
	IsAvailable(ctx context.Context, start, end time.Time) (bool, error)
	// CreateEvent books the event and returns a link to it, possibly empty.
	CreateEvent(ctx context.Context, ev Event) (string, error)
}
