package tickets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps tickets in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tickets []Ticket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, t Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.TicketID == t.TicketID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, t.TicketID)
		}
	}
	s.tickets = append(s.tickets, t)
	return nil
}

func (s *MemoryStore) FindRecent(ctx context.Context, email string, since time.Time) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Ticket
	for i := range s.tickets {
		t := s.tickets[i]
		if !strings.EqualFold(t.Email, email) || t.CreatedAt.Before(since) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			copied := t
			best = &copied
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// All returns a snapshot of every stored ticket in insertion order.
func (s *MemoryStore) All() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Ticket(nil), s.tickets...)
}
