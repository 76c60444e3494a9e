// Package memstore is the in-process backend. Records are generic action
// documents held in a map; searches run through querymem, which defines the
// reference semantics the SQL and Redis backends are tested against.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/logging"
	"github.com/roach88/actionstore/internal/queryir"
	"github.com/roach88/actionstore/internal/querymem"
)

// Store keeps documents in memory. Stored documents are never shared with
// callers: every read returns a copy.
//
// Thread-safety: All methods are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]action.Object
	ids    engine.IDGenerator
	logger *logging.Logger
}

var (
	_ engine.Storable[action.Object] = (*Store)(nil)
	_ engine.Named                   = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l.With("store/memory")
	}
}

// WithIDGenerator sets the generator for ids of actions stored without
// one. The default is engine.UUIDv7Generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:   make(map[string]action.Object),
		ids:    engine.UUIDv7Generator{},
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend in logs and metrics.
func (s *Store) Name() string { return "memory" }

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Serialize converts a to its document form.
func (s *Store) Serialize(_ context.Context, a action.Action) (action.Object, error) {
	obj, err := action.ToObject(a)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return obj, nil
}

// Deserialize converts a document back to an action.
func (s *Store) Deserialize(_ context.Context, doc action.Object) (action.Action, error) {
	a, err := action.FromObject(doc)
	if err != nil {
		return action.Action{}, fmt.Errorf("deserialize: %w", err)
	}
	return a, nil
}

// Create stores doc, assigning an id when it has none. A duplicate id
// returns the document already stored under it.
func (s *Store) Create(_ context.Context, doc action.Object) (action.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.insert(doc)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return stored, nil
}

// CreateMany stores docs atomically and returns them in input order.
func (s *Store) CreateMany(_ context.Context, docs []action.Object) ([]action.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage first so a failing element leaves the map untouched.
	staged := make([]action.Object, len(docs))
	for i, doc := range docs {
		c, err := clone(doc)
		if err != nil {
			return nil, fmt.Errorf("create many: doc %d: %w", i, err)
		}
		staged[i] = c
	}

	out := make([]action.Object, len(staged))
	for i, doc := range staged {
		stored, err := s.insert(doc)
		if err != nil {
			return nil, fmt.Errorf("create many: doc %d: %w", i, err)
		}
		out[i] = stored
	}
	s.logger.Trace("inserted documents", "count", len(out))
	return out, nil
}

// insert must be called with mu held.
func (s *Store) insert(doc action.Object) (action.Object, error) {
	c, err := clone(doc)
	if err != nil {
		return nil, err
	}
	id, _ := c["id"].(action.String)
	if id == "" {
		id = action.String(s.ids.Generate())
		c["id"] = id
	}
	if existing, ok := s.docs[string(id)]; ok {
		return clone(existing)
	}
	s.docs[string(id)] = c
	return clone(c)
}

// FindByID returns a copy of the document stored under id, or an error
// wrapping engine.ErrNotFound.
func (s *Store) FindByID(_ context.Context, id string) (action.Object, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, engine.NotFound(id)
	}
	return clone(doc)
}

// FindMany evaluates the search in memory. Returns an empty slice (not nil)
// if nothing matches.
func (s *Store) FindMany(_ context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]action.Object, error) {
	s.mu.RLock()
	docs := make([]action.Object, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	matched, err := querymem.Run(queryir.Build(opts, filters), docs)
	if err != nil {
		return nil, fmt.Errorf("find many: %w", err)
	}
	out := make([]action.Object, len(matched))
	for i, doc := range matched {
		if out[i], err = clone(doc); err != nil {
			return nil, fmt.Errorf("find many: %w", err)
		}
	}
	return out, nil
}

func clone(doc action.Object) (action.Object, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	v, err := action.UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(action.Object)
	if !ok {
		return nil, fmt.Errorf("document is %T, not an object", v)
	}
	return obj, nil
}
