package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/logging"
	"github.com/roach88/actionstore/internal/metrics"
	"github.com/roach88/actionstore/internal/testutil"
)

type logLine struct {
	level logging.Level
	msg   string
}

type recorder struct {
	mu    sync.Mutex
	lines []logLine
}

func (r *recorder) sink(level logging.Level, msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, logLine{level: level, msg: msg})
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine[testutil.FakeRecord], *testutil.FakeBackend) {
	t.Helper()
	f := testutil.NewFakeBackend()
	return engine.New(f, append([]engine.Option{engine.WithSink(nil)}, opts...)...), f
}

func TestCreateAction_RoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	in := testutil.NewAction(testutil.WithMeta(action.Object{"tier": action.String("gold")}))
	created, err := e.CreateAction(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	in.ID = created.ID
	assert.Equal(t, in, created)

	found, err := e.FindActionByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in, found)
}

func TestCreateAction_InvalidNeverReachesBackend(t *testing.T) {
	e, f := newEngine(t)

	_, err := e.CreateAction(context.Background(), testutil.NewAction(testutil.Invalid()))
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
	assert.Equal(t, 0, f.TotalCalls())
}

func TestCreateManyActions_PreservesOrder(t *testing.T) {
	e, f := newEngine(t, engine.WithConcurrency(4))
	f.ReorderBatches = true

	in := testutil.NewActions(12)
	created, err := e.CreateManyActions(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, created, len(in))
	for i := range in {
		assert.Equal(t, in[i].ID, created[i].ID, "position %d", i)
	}
	assert.Equal(t, 12, f.Calls(testutil.CallSerialize))
	assert.Equal(t, 1, f.Calls(testutil.CallCreateMany))
	assert.Equal(t, 12, f.Calls(testutil.CallDeserialize))
	assert.Equal(t, 0, f.Calls(testutil.CallCreate))
}

func TestCreateManyActions_InvalidBatchMakesNoBackendCalls(t *testing.T) {
	e, f := newEngine(t)

	batch := testutil.NewActions(3)
	batch[1].Action.Verb = ""
	batch[2].Agents = nil

	_, err := e.CreateManyActions(context.Background(), batch)
	require.Error(t, err)

	verrs, ok := action.AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{"[1].action.verb", "[2].agents"}, verrs.Fields())
	assert.Equal(t, 0, f.TotalCalls())
}

func TestCreateManyActions_EmptyBatch(t *testing.T) {
	e, f := newEngine(t)

	created, err := e.CreateManyActions(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)
	assert.Equal(t, 0, f.TotalCalls())
}

func TestCreateManyActions_CountMismatch(t *testing.T) {
	e, f := newEngine(t)
	f.DropFromBatch = 1

	_, err := e.CreateManyActions(context.Background(), testutil.NewActions(3))
	require.Error(t, err)
	assert.True(t, engine.IsContractError(err))
	assert.Contains(t, err.Error(), string(engine.ErrCodeCountMismatch))
}

func TestBackendErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	e, f := newEngine(t)
	f.Err = boom

	_, err := e.CreateAction(ctx, testutil.NewAction())
	assert.Equal(t, boom, err)

	_, err = e.CreateManyActions(ctx, testutil.NewActions(2))
	assert.Equal(t, boom, err)

	_, err = e.FindActionByID(ctx, "x")
	assert.Equal(t, boom, err)

	_, err = e.FindManyActions(ctx, nil, &action.FindActionFilters{CompanyID: "acme"})
	assert.Equal(t, boom, err)
}

func TestFindActionByID_NotFound(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.FindActionByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestFindActionByID_EmptyID(t *testing.T) {
	e, f := newEngine(t)

	_, err := e.FindActionByID(context.Background(), "")
	assert.True(t, engine.IsValidation(err))
	assert.Equal(t, 0, f.TotalCalls())
}

func TestFindManyActions_EmptyResult(t *testing.T) {
	e, _ := newEngine(t)

	found, err := e.FindManyActions(context.Background(), nil, &action.FindActionFilters{CompanyID: "acme"})
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestFindManyActions_ValidatesBeforeIO(t *testing.T) {
	e, f := newEngine(t)

	_, err := e.FindManyActions(context.Background(),
		&action.FindActionOptions{Limit: -1},
		&action.FindActionFilters{})
	require.Error(t, err)

	verrs, ok := action.AsValidationErrors(err)
	require.True(t, ok)
	assert.Contains(t, verrs.Fields(), "options.limit")
	assert.Contains(t, verrs.Fields(), "filters.companyId")
	assert.Equal(t, 0, f.TotalCalls())
}

func TestFindManyActions_RequiresCompanyScope(t *testing.T) {
	e, f := newEngine(t)
	_, err := e.CreateManyActions(context.Background(), testutil.NewActions(2))
	require.NoError(t, err)
	before := f.TotalCalls()

	found, err := e.FindManyActions(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Nil(t, found)

	verrs, ok := action.AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{"filters.companyId"}, verrs.Fields())
	assert.Equal(t, before, f.TotalCalls())
}

func TestFindManyActions_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	batch := testutil.NewActions(3)
	batch[0].App = "auth"
	_, err := e.CreateManyActions(ctx, batch)
	require.NoError(t, err)

	found, err := e.FindManyActions(ctx, nil, &action.FindActionFilters{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, []string{"act-003", "act-002", "act-001"}, []string{found[0].ID, found[1].ID, found[2].ID})

	found, err = e.FindManyActions(ctx, nil, &action.FindActionFilters{CompanyID: "acme", App: action.Many("auth")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "act-001", found[0].ID)
}

func TestLogThreshold(t *testing.T) {
	ctx := context.Background()
	invalid := testutil.NewAction(testutil.Invalid())

	rec := &recorder{}
	e := engine.New(testutil.NewFakeBackend(), engine.WithSink(rec.sink), engine.WithLogLevel(logging.LevelWarn))
	_, _ = e.CreateAction(ctx, invalid)
	assert.Empty(t, rec.lines, "info message below warn threshold")

	rec = &recorder{}
	e = engine.New(testutil.NewFakeBackend(), engine.WithSink(rec.sink), engine.WithLogLevel(logging.LevelInfo))
	_, _ = e.CreateAction(ctx, invalid)
	require.Len(t, rec.lines, 1)
	assert.Equal(t, logging.LevelInfo, rec.lines[0].level)
	assert.True(t, strings.HasPrefix(rec.lines[0].msg, "[info] [actionstore/engine] "), rec.lines[0].msg)

	rec = &recorder{}
	e = engine.New(testutil.NewFakeBackend(), engine.WithSink(rec.sink), engine.WithLogLevel(logging.LevelAll))
	_, err := e.CreateAction(ctx, testutil.NewAction())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.lines, "debug messages pass at the all threshold")
}

func TestNilSinkIsSilent(t *testing.T) {
	e := engine.New(testutil.NewFakeBackend(), engine.WithSink(nil), engine.WithLogLevel(logging.LevelAll))
	assert.False(t, e.Logger().Enabled(logging.LevelFatal))
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	e, _ := newEngine(t, engine.WithMetrics(m))

	_, err := e.CreateManyActions(ctx, testutil.NewActions(2))
	require.NoError(t, err)
	_, _ = e.FindActionByID(ctx, "missing")
	_, _ = e.CreateAction(ctx, testutil.NewAction(testutil.Invalid()))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Operations.WithLabelValues("fake", engine.OpCreateManyActions, metrics.OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Operations.WithLabelValues("fake", engine.OpFindActionByID, metrics.OutcomeNotFound)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Operations.WithLabelValues("fake", engine.OpCreateAction, metrics.OutcomeInvalid)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.ActionsWritten.WithLabelValues("fake")))
}

func TestName(t *testing.T) {
	e, _ := newEngine(t)
	assert.Equal(t, "fake", e.Name())

	e, _ = newEngine(t, engine.WithName("primary"))
	assert.Equal(t, "primary", e.Name())
}

func TestEngineSatisfiesActions(t *testing.T) {
	var actions engine.Actions
	actions, _ = newEngine(t)
	assert.NotNil(t, actions)
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateAction(ctx, testutil.NewAction(testutil.WithID(fmt.Sprintf("c-%d", i))))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := e.FindManyActions(ctx, &action.FindActionOptions{Limit: 100}, &action.FindActionFilters{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Len(t, found, 16)
}
