// Package bootstrap turns configuration into the concrete stores, clients and gates the
// API binary runs on.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/dental-ai-assistant/internal/config"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore selects the conversation state backend. "redis" requires a client.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (session.Store, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	switch cfg.SessionStore {
	case "", "memory":
		return session.NewMemoryStore(cfg.SessionTTL, logger), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("bootstrap: SESSION_STORE=redis but redis is unavailable")
		}
		return session.NewRedisStore(redisClient, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}

// BuildTicketStore opens the configured ticket backend. The returned close func is never nil.
func BuildTicketStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (tickets.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.TicketStore {
	case "", "memory":
		logger.Warn("tickets are kept in memory and lost on restart")
		return tickets.NewMemoryStore(), noop, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, noop, errors.New("bootstrap: TICKET_STORE=postgres requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("ticket store ready", "backend", "postgres")
		return tickets.NewPostgresStore(pool), pool.Close, nil
	case "sqlite":
		store, err := tickets.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("ticket store ready", "backend", "sqlite", "path", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown ticket store %q", cfg.TicketStore)
	}
}
