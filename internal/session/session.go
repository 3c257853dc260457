// Package session keeps per-identity conversation state between messages.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/extraction"
)

// ErrLockTimeout is returned when a per-key lock cannot be acquired in time.
var ErrLockTimeout = errors.New("session: lock wait timed out")

// State is the confirmation protocol state persisted with the session.
type State string

const (
	StateCollecting           State = "collecting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// Channel identifies where a conversation takes place.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
)

// Message roles stored in history.
const (
	RoleUser      = extraction.RoleUser
	RoleAssistant = "assistant"
)

// Message is one stored turn.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is everything remembered about one counterpart.
type Session struct {
	Key        string            `json:"key"`
	Channel    Channel           `json:"channel"`
	History    []Message         `json:"history"`
	State      State             `json:"state"`
	Fields     extraction.Fields `json:"fields"`
	CycleStart int               `json:"cycle_start"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Store is the capability the conversation pipeline needs from a session backend.
// Get returns (nil, nil) for unknown or expired keys.
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Lock(ctx context.Context, key string) (func(), error)
}

// WebKey builds the store key for a chat widget session.
func WebKey(sessionID string) string {
	return "web:" + sessionID
}

// WhatsAppKey builds the store key for a WhatsApp counterpart.
func WhatsAppKey(phone string) string {
	return "wa:" + phone
}

// New returns an empty session in the collecting state.
func New(key string, channel Channel) *Session {
	return &Session{
		Key:     key,
		Channel: channel,
		State:   StateCollecting,
	}
}

// ConfirmationPending reports whether a recap is awaiting the user's answer.
func (s *Session) ConfirmationPending() bool {
	return s.State == StateAwaitingConfirmation
}

// Append adds a turn to the history.
func (s *Session) Append(role, content string, at time.Time) {
	s.History = append(s.History, Message{Role: role, Content: content, At: at})
	s.UpdatedAt = at
}

// CycleMessages returns the messages of the current booking cycle in extractor form.
func (s *Session) CycleMessages() []extraction.Message {
	start := s.CycleStart
	if start < 0 || start > len(s.History) {
		start = 0
	}
	out := make([]extraction.Message, 0, len(s.History)-start)
	for _, m := range s.History[start:] {
		out = append(out, extraction.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// StartNewCycle forgets the collected fields so the next request starts clean.
func (s *Session) StartNewCycle() {
	s.Fields = extraction.Fields{}
	s.State = StateCollecting
	s.CycleStart = len(s.History)
}

// Clone returns a deep copy safe to hand across goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Message(nil), s.History...)
	return &c
}
