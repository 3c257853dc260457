package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCalendar is an in-process calendar used when no Google calendar is configured.
type MemoryCalendar struct {
	mu     sync.Mutex
	events []Event
	linkFn func(n int) string
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{
		linkFn: func(n int) string { return fmt.Sprintf("memory://calendar/events/%d", n) },
	}
}

func (m *MemoryCalendar) IsAvailable(ctx context.Context, start, end time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.overlaps(start, end), nil
}

func (m *MemoryCalendar) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ev.End.After(ev.Start) {
		return "", fmt.Errorf("calendar: event ends before it starts")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlaps(ev.Start, ev.End) {
		return "", ErrSlotUnavailable
	}
	m.events = append(m.events, ev)
	return m.linkFn(len(m.events)), nil
}

// Events returns a snapshot of booked events.
func (m *MemoryCalendar) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *MemoryCalendar) overlaps(start, end time.Time) bool {
	for _, ev := range m.events {
		if start.Before(ev.End) && ev.Start.Before(end) {
			return true
		}
	}
	return false
}
