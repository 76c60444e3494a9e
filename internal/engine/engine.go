package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/logging"
	"github.com/roach88/actionstore/internal/metrics"
)

// Storable is the capability set every storage backend implements.
// R is the backend's native record shape.
//
// Contract:
//   - Serialize and Deserialize are mutual inverses up to an assigned id
//   - Create returns the persisted record, with an id assigned when absent
//   - CreateMany returns records in input order, one per input
//   - FindByID returns an error wrapping ErrNotFound when the id is absent
//   - FindMany returns an empty slice, not an error, when nothing matches
//
// Implementations must be safe for concurrent use.
type Storable[R any] interface {
	Serialize(ctx context.Context, a action.Action) (R, error)
	Deserialize(ctx context.Context, rec R) (action.Action, error)
	Create(ctx context.Context, rec R) (R, error)
	CreateMany(ctx context.Context, recs []R) ([]R, error)
	FindByID(ctx context.Context, id string) (R, error)
	FindMany(ctx context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]R, error)
}

// Named is implemented by backends that report a name for logs and metrics.
type Named interface {
	Name() string
}

// Actions is the canonical, Action-typed surface of an Engine. It hides the
// backend record type so callers can hold any engine behind one interface.
type Actions interface {
	CreateAction(ctx context.Context, a action.Action) (action.Action, error)
	CreateManyActions(ctx context.Context, actions []action.Action) ([]action.Action, error)
	FindActionByID(ctx context.Context, id string) (action.Action, error)
	FindManyActions(ctx context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]action.Action, error)
}

// Operation names used in logs and metrics.
const (
	OpCreateAction      = "create_action"
	OpCreateManyActions = "create_many_actions"
	OpFindActionByID    = "find_action_by_id"
	OpFindManyActions   = "find_many_actions"
)

// Engine orchestrates validation, serialization and persistence on top of a
// Storable backend.
//
// After New returns, an Engine holds only read-only configuration and is
// safe for concurrent use as long as its backend is.
type Engine[R any] struct {
	backend     Storable[R]
	logger      *logging.Logger
	metrics     *metrics.Collector
	concurrency int
	name        string
}

var _ Actions = (*Engine[struct{}])(nil)

// New creates an Engine over backend.
func New[R any](backend Storable[R], opts ...Option) *Engine[R] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.name == "" {
		cfg.name = "custom"
		if n, ok := backend.(Named); ok {
			cfg.name = n.Name()
		}
	}

	sink := cfg.sink
	if !cfg.sinkSet {
		sink = logging.ConsoleSink()
	}

	return &Engine[R]{
		backend:     backend,
		logger:      logging.New(sink, cfg.level, "engine"),
		metrics:     cfg.metrics,
		concurrency: cfg.concurrency,
		name:        cfg.name,
	}
}

// Backend returns the underlying primitives. Intended for backend
// implementers; callers should prefer the Action-typed operations.
func (e *Engine[R]) Backend() Storable[R] {
	return e.backend
}

// Logger returns the engine's logger.
func (e *Engine[R]) Logger() *logging.Logger {
	return e.logger
}

// Name returns the backend label.
func (e *Engine[R]) Name() string {
	return e.name
}

// CreateAction validates a, then serializes, persists and deserializes it.
// An invalid action never reaches the backend.
func (e *Engine[R]) CreateAction(ctx context.Context, a action.Action) (action.Action, error) {
	start := time.Now()
	created, err := e.createAction(ctx, a)
	e.observe(OpCreateAction, err, start)
	if err == nil {
		e.metrics.Written(e.name, 1)
	}
	return created, err
}

func (e *Engine[R]) createAction(ctx context.Context, a action.Action) (action.Action, error) {
	if _, err := action.ValidateAction(a); err != nil {
		e.logger.Info("rejected invalid action", "error", err.Error())
		return action.Action{}, err
	}

	rec, err := e.backend.Serialize(ctx, a)
	if err != nil {
		return action.Action{}, err
	}
	persisted, err := e.backend.Create(ctx, rec)
	if err != nil {
		e.logger.Error("create failed", "error", err.Error())
		return action.Action{}, err
	}
	out, err := e.backend.Deserialize(ctx, persisted)
	if err != nil {
		return action.Action{}, err
	}

	e.logger.Debug("created action", "id", out.ID)
	return out, nil
}

// CreateManyActions validates every element before touching the backend; one
// invalid element fails the whole batch with violations named "[i].field".
// Results keep input order.
func (e *Engine[R]) CreateManyActions(ctx context.Context, actions []action.Action) ([]action.Action, error) {
	start := time.Now()
	created, err := e.createManyActions(ctx, actions)
	e.observe(OpCreateManyActions, err, start)
	if err == nil {
		e.metrics.Written(e.name, len(created))
	}
	return created, err
}

func (e *Engine[R]) createManyActions(ctx context.Context, actions []action.Action) ([]action.Action, error) {
	if len(actions) == 0 {
		return []action.Action{}, nil
	}

	var violations action.ValidationErrors
	for i := range actions {
		if errs := actions[i].Validate(); len(errs) > 0 {
			violations = append(violations, action.ValidationErrors(errs).Prefix(fmt.Sprintf("[%d]", i))...)
		}
	}
	if len(violations) > 0 {
		e.logger.Info("rejected invalid batch", "size", len(actions), "error", violations.Error())
		return nil, violations
	}

	recs, err := mapOrdered(ctx, e.concurrency, actions, e.backend.Serialize)
	if err != nil {
		return nil, err
	}
	persisted, err := e.backend.CreateMany(ctx, recs)
	if err != nil {
		e.logger.Error("create many failed", "size", len(recs), "error", err.Error())
		return nil, err
	}
	if len(persisted) != len(recs) {
		err := newCountMismatch(OpCreateManyActions, len(recs), len(persisted))
		e.logger.Error("backend broke batch contract", "error", err.Error())
		return nil, err
	}
	out, err := mapOrdered(ctx, e.concurrency, persisted, e.backend.Deserialize)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("created actions", "count", len(out))
	return out, nil
}

// FindActionByID returns the action with id, or an error wrapping
// ErrNotFound. It never returns an empty Action without an error.
func (e *Engine[R]) FindActionByID(ctx context.Context, id string) (action.Action, error) {
	start := time.Now()
	found, err := e.findActionByID(ctx, id)
	e.observe(OpFindActionByID, err, start)
	if err == nil {
		e.metrics.Returned(e.name, 1)
	}
	return found, err
}

func (e *Engine[R]) findActionByID(ctx context.Context, id string) (action.Action, error) {
	if id == "" {
		return action.Action{}, action.ValidationErrors{{Field: "id", Message: "is required"}}
	}

	rec, err := e.backend.FindByID(ctx, id)
	if err != nil {
		if !IsNotFound(err) {
			e.logger.Error("find by id failed", "id", id, "error", err.Error())
		}
		return action.Action{}, err
	}
	a, err := e.backend.Deserialize(ctx, rec)
	if err != nil {
		return action.Action{}, err
	}
	if a.ID == "" {
		e.logger.Warn("backend returned a record without id", "id", id)
		return action.Action{}, NotFound(id)
	}
	return a, nil
}

// FindManyActions validates opts when given and filters always, then
// returns the matching actions in backend order. Filters must name a
// company, so nil filters are rejected. No match yields an empty slice.
func (e *Engine[R]) FindManyActions(ctx context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]action.Action, error) {
	start := time.Now()
	found, err := e.findManyActions(ctx, opts, filters)
	e.observe(OpFindManyActions, err, start)
	if err == nil {
		e.metrics.Returned(e.name, len(found))
	}
	return found, err
}

func (e *Engine[R]) findManyActions(ctx context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]action.Action, error) {
	var violations action.ValidationErrors
	if opts != nil {
		violations = append(violations, action.ValidationErrors(opts.Validate()).Prefix("options")...)
	}
	if filters == nil {
		filters = &action.FindActionFilters{}
	}
	violations = append(violations, action.ValidationErrors(filters.Validate()).Prefix("filters")...)
	if len(violations) > 0 {
		e.logger.Info("rejected invalid search", "error", violations.Error())
		return nil, violations
	}

	recs, err := e.backend.FindMany(ctx, opts, filters)
	if err != nil {
		e.logger.Error("find many failed", "error", err.Error())
		return nil, err
	}
	if len(recs) == 0 {
		return []action.Action{}, nil
	}
	return mapOrdered(ctx, e.concurrency, recs, e.backend.Deserialize)
}

func (e *Engine[R]) observe(op string, err error, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.Observe(e.name, op, outcome(err), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsValidation(err):
		return metrics.OutcomeInvalid
	case IsNotFound(err):
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeBackendErr
}

// mapOrdered applies fn to every element with at most limit calls in flight.
// out[i] always corresponds to in[i]. The first error wins.
func mapOrdered[In, Out any](ctx context.Context, limit int, in []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(in))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range in {
		g.Go(func() error {
			v, err := fn(gctx, in[i])
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
