// Package redisstore provides the Redis backend for actions.
//
// Layout, under a configurable key prefix:
//
//	{prefix}:action:{id}        the action document without its id (JSON)
//	{prefix}:company:{company}  sorted set of ids scored by timestamp (unix ms)
//	{prefix}:actions            sorted set of every id, same scores
//
// Writes run as one Lua script so a batch lands atomically. Searches read
// candidate ids from the narrowest index, bounded by start/end when given,
// and evaluate the rest of the query with querymem.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	goredis "github.com/redis/go-redis/v9"

	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/logging"
)

// Defaults.
const (
	DefaultPrefix          = "actionstore"
	DefaultConnectAttempts = 5
	DefaultConnectDelay    = 200 * time.Millisecond
)

// Store is the Redis backend.
//
// Thread-safety: All methods are safe for concurrent use; the client owns
// connection pooling.
type Store struct {
	client   *goredis.Client
	prefix   string
	logger   *logging.Logger
	ids      engine.IDGenerator
	password string
	db       int
	attempts uint
	delay    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l.With("store/redis")
	}
}

// WithIDGenerator sets the generator for ids of actions stored without
// one. The default is engine.UUIDv7Generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithPrefix namespaces every key. Blank prefixes are ignored.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = p
		}
	}
}

// WithPassword sets the AUTH password. Ignored with WithClient.
func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

// WithDB selects the logical database. Ignored with WithClient.
func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

// WithClient uses an existing client instead of dialing addr.
func WithClient(client *goredis.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
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

// Open connects to the server at addr and waits until it answers.
func Open(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	s := &Store{
		prefix:   DefaultPrefix,
		logger:   logging.Nop(),
		ids:      engine.UUIDv7Generator{},
		attempts: DefaultConnectAttempts,
		delay:    DefaultConnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		if strings.TrimSpace(addr) == "" {
			return nil, fmt.Errorf("redis addr is required")
		}
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
	)
	if err := r.Do(func() error {
		if err := s.client.Ping(ctx).Err(); err != nil {
			s.logger.Warn("redis not ready", "error", err.Error())
			return err
		}
		return nil
	}); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s.logger.Debug("opened redis store", "prefix", s.prefix)
	return s, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying client.
func (s *Store) Client() *goredis.Client {
	return s.client
}

// Name identifies the backend in logs and metrics.
func (s *Store) Name() string { return "redis" }

func (s *Store) actionKey(id string) string {
	return s.prefix + ":action:" + id
}

func (s *Store) companyKey(company string) string {
	return s.prefix + ":company:" + company
}

func (s *Store) allKey() string {
	return s.prefix + ":actions"
}
