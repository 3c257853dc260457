// Package dispatch turns confirmed conversations into calendar events, stored tickets
// and confirmation emails, off the request path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/calendar"
	"github.com/wolfman30/dental-ai-assistant/internal/extraction"
	"github.com/wolfman30/dental-ai-assistant/internal/notify"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultDuration    = 60 * time.Minute
)

// Outcome summarises a successful dispatch.
type Outcome struct {
	Ticket       tickets.Ticket
	CalendarLink string
	Notified     bool
}

// Runner executes one dispatch. Implemented by Dispatcher.
type Runner interface {
	Dispatch(ctx context.Context, data tickets.TicketData) (Outcome, error)
}

// Dispatcher runs the calendar, store and notification steps in order.
type Dispatcher struct {
	calendar    calendar.Service
	store       tickets.Store
	notifier    notify.ConfirmationSender
	location    *time.Location
	duration    time.Duration
	callTimeout time.Duration
	now         func() time.Time
	logger      *logging.Logger
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithCalendar enables the calendar step for appointments.
func WithCalendar(svc calendar.Service) Option {
	return func(d *Dispatcher) {
		d.calendar = svc
	}
}

// WithLocation sets the clinic timezone used for appointment windows and ticket timestamps.
func WithLocation(loc *time.Location) Option {
	return func(d *Dispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithAppointmentDuration sets how long a booked slot lasts.
func WithAppointmentDuration(duration time.Duration) Option {
	return func(d *Dispatcher) {
		if duration > 0 {
			d.duration = duration
		}
	}
}

// WithCallTimeout bounds every external call made during a dispatch.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(store tickets.Store, notifier notify.ConfirmationSender, logger *logging.Logger, opts ...Option) *Dispatcher {
	if store == nil {
		panic("dispatch: ticket store cannot be nil")
	}
	if notifier == nil {
		panic("dispatch: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		store:       store,
		notifier:    notifier,
		location:    time.UTC,
		duration:    defaultDuration,
		callTimeout: defaultCallTimeout,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch books the calendar slot (appointments only), persists the ticket and
// sends the confirmation email. Calendar and email failures are logged and tolerated;
// a store failure ends the dispatch with an error classified by tickets.Classify.
func (d *Dispatcher) Dispatch(ctx context.Context, data tickets.TicketData) (Outcome, error) {
	if data.Type == "" {
		data.Type = tickets.TypeAppointment
	}
	logger := d.logger.With("ticket_type", data.Type)

	var outcome Outcome
	if data.Type == tickets.TypeAppointment && d.calendar != nil {
		outcome.CalendarLink = d.reserve(ctx, data, logger)
		data.CalendarEventLink = outcome.CalendarLink
	}

	ticket, err := tickets.New(data, d.now().In(d.location))
	if err != nil {
		return Outcome{}, fmt.Errorf("dispatch: %w", err)
	}

	err = d.insert(ctx, &ticket, logger)
	logger = logger.With("ticket_id", ticket.TicketID)
	if err != nil {
		logger.Error("ticket persistence failed", "error", err, "error_class", tickets.ErrorClass(err))
		return Outcome{}, fmt.Errorf("dispatch: persist ticket: %w", err)
	}
	outcome.Ticket = ticket
	logger.Info("ticket persisted", "calendar_linked", outcome.CalendarLink != "")

	notifyCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	err = d.notifier.SendConfirmation(notifyCtx, ticket, ticket.Email)
	cancel()
	if err != nil {
		logger.Warn("confirmation email failed; ticket kept", "error", err)
		return outcome, nil
	}
	outcome.Notified = true
	return outcome, nil
}

// insert persists t, drawing a fresh id and retrying once when the id is taken.
func (d *Dispatcher) insert(ctx context.Context, t *tickets.Ticket, logger *logging.Logger) error {
	for attempt := 0; ; attempt++ {
		insertCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		err := tickets.Classify(d.store.Insert(insertCtx, *t))
		cancel()
		if err == nil || attempt > 0 || !errors.Is(err, tickets.ErrDuplicateID) {
			return err
		}
		id, idErr := tickets.NewID()
		if idErr != nil {
			return idErr
		}
		logger.Warn("ticket id already taken; retrying with a new id", "ticket_id", t.TicketID, "new_ticket_id", id)
		t.TicketID = id
	}
}

// reserve returns the event link, or "" when the slot could not be booked.
func (d *Dispatcher) reserve(ctx context.Context, data tickets.TicketData, logger *logging.Logger) string {
	start, end, err := extraction.AppointmentWindow(data.ProposedDate, data.ProposedTime, d.location, d.duration)
	if err != nil {
		logger.Warn("cannot compute appointment window", "error", err)
		return ""
	}

	checkCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	available, err := d.calendar.IsAvailable(checkCtx, start, end)
	cancel()
	if err != nil {
		logger.Warn("calendar availability check failed", "error", err)
		return ""
	}
	if !available {
		logger.Warn("requested slot is busy; ticket filed without calendar event", "start", start.Format(time.RFC3339))
		return ""
	}

	createCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	link, err := d.calendar.CreateEvent(createCtx, calendar.Event{
		Title:        eventTitle(data),
		Description:  eventDescription(data),
		Start:        start,
		End:          end,
		ContactEmail: data.Email,
	})
	cancel()
	if err != nil {
		logger.Warn("calendar event creation failed", "error", err)
		return ""
	}
	return link
}

func eventTitle(data tickets.TicketData) string {
	service := strings.TrimSpace(data.ServiceType)
	if service == "" {
		service = "Consultation"
	}
	return fmt.Sprintf("%s - %s", service, data.Name)
}

func eventDescription(data tickets.TicketData) string {
	return fmt.Sprintf("Patient : %s\nTéléphone : %s\nEmail : %s", data.Name, data.Phone, data.Email)
}
