package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// GoogleCalendar books appointments on a Google Calendar through the v3 API.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	timezone   string
	logger     *logging.Logger
}

// NewGoogleCalendar builds a client using a service account credentials file.
// Extra client options (endpoint, HTTP client) are appended after the credentials.
func NewGoogleCalendar(ctx context.Context, calendarID, credentialsFile, timezone string, logger *logging.Logger, opts ...option.ClientOption) (*GoogleCalendar, error) {
	if calendarID == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleCalendar{
		svc:        svc,
		calendarID: calendarID,
		timezone:   timezone,
		logger:     logger,
	}, nil
}

// IsAvailable reports whether the calendar has no busy period overlapping [start, end).
func (g *GoogleCalendar) IsAvailable(ctx context.Context, start, end time.Time) (bool, error) {
	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: g.timezone,
		Items:    []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("calendar: freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return false, fmt.Errorf("calendar: freebusy response missing calendar %s", g.calendarID)
	}
	if len(cal.Errors) > 0 {
		return false, fmt.Errorf("calendar: freebusy error: %s", cal.Errors[0].Reason)
	}
	return len(cal.Busy) == 0, nil
}

// CreateEvent inserts the event and returns its HTML link.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, ev Event) (string, error) {
	event := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
	}
	if ev.ContactEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: ev.ContactEmail}}
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	g.logger.Debug("calendar event created", "event_id", created.Id)
	return created.HtmlLink, nil
}
