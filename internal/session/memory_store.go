package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// keyLock is a one-slot semaphore shared by every holder or waiter of a key.
// It is removed from the store once refs drops to zero.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// MemoryStore keeps sessions in process memory with TTL eviction.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	locks   map[string]*keyLock
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

// NewMemoryStore creates an in-memory store. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration, logger *logging.Logger) *MemoryStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		locks:   make(map[string]*keyLock),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Get returns a copy of the stored session, or nil when absent or expired.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.expired(entry) {
		delete(m.entries, key)
		return nil, nil
	}
	return entry.session.Clone(), nil
}

// Put stores a copy of s and refreshes its expiry.
func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	if s == nil || s.Key == "" {
		return fmt.Errorf("session: cannot store session without key")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{session: s.Clone()}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.entries[s.Key] = entry
	return nil
}

// Lock serialises work on one key. It blocks until the lock is free or ctx ends.
func (m *MemoryStore) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, kl)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			m.release(key, kl)
		})
	}, nil
}

func (m *MemoryStore) release(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs <= 0 && m.locks[key] == kl {
		delete(m.locks, key)
	}
}

// Len reports how many live sessions are held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes expired sessions and returns how many were evicted.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for k, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, k)
			evicted++
		}
	}
	for k, kl := range m.locks {
		if _, live := m.entries[k]; !live && kl.refs <= 0 {
			delete(m.locks, k)
		}
	}
	return evicted
}

// StartJanitor sweeps expired sessions every interval until ctx is cancelled.
func (m *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug("evicted expired sessions", "count", n)
				}
			}
		}
	}()
}

func (m *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt)
}
