// Package tickets persists confirmed appointment and support requests.
package tickets

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Type distinguishes appointment tickets from support tickets.
type Type string

const (
	TypeAppointment Type = "appointment"
	TypeSupport     Type = "support"
)

// TicketData is the payload assembled from a confirmed conversation.
type TicketData struct {
	Type              Type   `json:"type"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	ServiceType       string `json:"service_type,omitempty"`
	ProposedDate      string `json:"proposed_date,omitempty"`
	ProposedTime      string `json:"proposed_time,omitempty"`
	IssueType         string `json:"issue_type,omitempty"`
	Description       string `json:"description,omitempty"`
	CalendarEventLink string `json:"calendar_event_link,omitempty"`
}

// Ticket is a persisted TicketData with its identifier.
type Ticket struct {
	TicketData
	TicketID  string    `json:"ticket_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns "TCK-" followed by eight uppercase hex characters.
func NewID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("tickets: generate id: %w", err)
	}
	return "TCK-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// New stamps data with a fresh id and the creation time.
func New(data TicketData, now time.Time) (Ticket, error) {
	id, err := NewID()
	if err != nil {
		return Ticket{}, err
	}
	if data.Type == "" {
		data.Type = TypeAppointment
	}
	return Ticket{TicketData: data, TicketID: id, CreatedAt: now}, nil
}
