package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultLockTTL      = 30 * time.Second
	defaultLockWait     = 10 * time.Second
	defaultLockInterval = 50 * time.Millisecond
)

// Deletes the lock only if it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore persists sessions as JSON values with a sliding TTL.
type RedisStore struct {
	redis        *redis.Client
	tracer       trace.Tracer
	ttl          time.Duration
	lockTTL      time.Duration
	lockWait     time.Duration
	lockInterval time.Duration
}

// RedisOption customises a RedisStore.
type RedisOption func(*RedisStore)

// WithLockTiming overrides how long a lock lives and how long Lock waits for it.
func WithLockTiming(ttl, wait, interval time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
		if wait > 0 {
			s.lockWait = wait
		}
		if interval > 0 {
			s.lockInterval = interval
		}
	}
}

// WithTracer sets the tracer used for session spans.
func WithTracer(tracer trace.Tracer) RedisOption {
	return func(s *RedisStore) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	s := &RedisStore{
		redis:        client,
		tracer:       otel.Tracer("dental.internal.session"),
		ttl:          ttl,
		lockTTL:      defaultLockTTL,
		lockWait:     defaultLockWait,
		lockInterval: defaultLockInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get", trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load %s: %w", key, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode %s: %w", key, err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.Key == "" {
		return fmt.Errorf("session: cannot store session without key")
	}
	ctx, span := s.tracer.Start(ctx, "session.put", trace.WithAttributes(attribute.String("session.key", sess.Key)))
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", sess.Key, err)
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, sessionKey(sess.Key), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist %s: %w", sess.Key, err)
	}
	return nil
}

// Lock acquires a distributed per-key lock, polling until lockWait elapses.
func (s *RedisStore) Lock(ctx context.Context, key string) (func(), error) {
	ctx, span := s.tracer.Start(ctx, "session.lock", trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	token := uuid.NewString()
	deadline := time.Now().Add(s.lockWait)
	for {
		ok, err := s.redis.SetNX(ctx, lockKey(key), token, s.lockTTL).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			span.RecordError(ErrLockTimeout)
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(s.lockInterval):
		}
	}

	return func() {
		// Released on a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(releaseCtx, s.redis, []string{lockKey(key)}, token).Err()
	}, nil
}

func sessionKey(key string) string {
	return fmt.Sprintf("session:%s", key)
}

func lockKey(key string) string {
	return fmt.Sprintf("session_lock:%s", key)
}
