package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/logging"
	"github.com/roach88/actionstore/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Defaults for connection establishment.
const (
	DefaultConnectAttempts = 5
	DefaultConnectDelay    = 200 * time.Millisecond
)

// Store is the PostgreSQL backend.
//
// Thread-safety: All methods are safe for concurrent use; the pool owns
// connection management.
type Store struct {
	pool     *pgxpool.Pool
	compiler *querysql.Compiler
	logger   *logging.Logger
	ids      engine.IDGenerator

	attempts uint
	delay    time.Duration
	maxConns int32
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l.With("store/postgres")
	}
}

// WithIDGenerator sets the generator for ids of actions stored without
// one. The default is engine.UUIDv7Generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithConnectRetry sets how often and how far apart Open pings the server
// before giving up.
func WithConnectRetry(attempts uint, delay time.Duration) Option {
	return func(s *Store) {
		s.attempts = max(attempts, 1)
		s.delay = delay
	}
}

// WithMaxConns caps the pool size. Zero keeps the pgx default.
func WithMaxConns(n int32) Option {
	return func(s *Store) {
		s.maxConns = n
	}
}

// Open connects to dsn, waits for the server to answer and creates the
// schema if needed.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		compiler: querysql.NewCompiler(querysql.Postgres),
		logger:   logging.Nop(),
		ids:      engine.UUIDv7Generator{},
		attempts: DefaultConnectAttempts,
		delay:    DefaultConnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if s.maxConns > 0 {
		cfg.MaxConns = s.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
	)
	if err := r.Do(func() error {
		if err := pool.Ping(ctx); err != nil {
			s.logger.Warn("postgres not ready", "error", err.Error())
			return err
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s.pool = pool
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Debug("opened postgres store")
	return s, nil
}

// migrate applies the embedded schema one statement at a time. Every
// statement is idempotent.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range statements(schemaSQL) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// statements splits a script on semicolons, dropping comment-only chunks.
func statements(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return out
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(stmt, "\n")
	return line
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Name identifies the backend in logs and metrics.
func (s *Store) Name() string { return "postgres" }
