// Package backend opens the storage backend named by configuration and
// wraps it in an Engine.
package backend

import (
	"context"
	"fmt"

	"github.com/roach88/actionstore/internal/config"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/logging"
	"github.com/roach88/actionstore/internal/memstore"
	"github.com/roach88/actionstore/internal/pgstore"
	"github.com/roach88/actionstore/internal/redisstore"
	"github.com/roach88/actionstore/internal/store"
)

// Handle is an opened backend. Close releases its connections.
type Handle struct {
	engine.Actions
	name  string
	close func() error
}

// Name returns the backend label used in logs and metrics.
func (h *Handle) Name() string { return h.name }

// Close releases the backend. Safe to call more than once.
func (h *Handle) Close() error {
	if h.close == nil {
		return nil
	}
	c := h.close
	h.close = nil
	return c()
}

// Open opens the configured backend. opts are applied after the options
// derived from cfg, so callers can override logging or add metrics.
func Open(ctx context.Context, cfg *config.Config, opts ...engine.Option) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sink := cfg.LogSink()
	logger := logging.New(sink, cfg.LogLevel(), "backend")
	engineOpts := append([]engine.Option{
		engine.WithSink(sink),
		engine.WithLogLevel(cfg.LogLevel()),
		engine.WithConcurrency(cfg.Engine.Concurrency),
	}, opts...)

	switch cfg.Backend {
	case config.BackendMemory:
		s := memstore.New(memstore.WithLogger(logger))
		return &Handle{Actions: engine.New(s, engineOpts...), name: s.Name()}, nil

	case config.BackendSQLite:
		s, err := store.Open(cfg.SQLite.Path, store.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Handle{Actions: engine.New(s, engineOpts...), name: s.Name(), close: s.Close}, nil

	case config.BackendPostgres:
		pc := cfg.Postgres
		s, err := pgstore.Open(ctx, pc.DSN,
			pgstore.WithLogger(logger),
			pgstore.WithMaxConns(pc.MaxConns),
			pgstore.WithConnectRetry(pc.ConnectAttempts, pc.ConnectDelay),
		)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Handle{Actions: engine.New(s, engineOpts...), name: s.Name(), close: s.Close}, nil

	case config.BackendRedis:
		rc := cfg.Redis
		s, err := redisstore.Open(ctx, rc.Addr,
			redisstore.WithLogger(logger),
			redisstore.WithPassword(rc.Password),
			redisstore.WithDB(rc.DB),
			redisstore.WithPrefix(rc.Prefix),
			redisstore.WithConnectRetry(rc.ConnectAttempts, rc.ConnectDelay),
		)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return &Handle{Actions: engine.New(s, engineOpts...), name: s.Name(), close: s.Close}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
