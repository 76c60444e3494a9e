package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/testutil"
)

func TestKeys(t *testing.T) {
	s := &Store{prefix: "p"}
	assert.Equal(t, "p:action:a1", s.actionKey("a1"))
	assert.Equal(t, "p:company:acme", s.companyKey("acme"))
	assert.Equal(t, "p:actions", s.allKey())
}

func TestWithPrefixIgnoresBlank(t *testing.T) {
	s := &Store{prefix: DefaultPrefix}
	WithPrefix("  ")(s)
	assert.Equal(t, DefaultPrefix, s.prefix)
	WithPrefix(" tenant ")(s)
	assert.Equal(t, "tenant", s.prefix)
}

func TestScore(t *testing.T) {
	assert.Equal(t, float64(testutil.Epoch.UnixMilli()), score(testutil.At(0)))
	assert.Equal(t, float64(testutil.Epoch.UnixMilli()+1000), score(testutil.At(1)))
	assert.Equal(t, 0.0, score("not a time"))
}

func TestSerialize(t *testing.T) {
	s := &Store{}
	rec, err := s.Serialize(context.Background(), testutil.NewAction(testutil.WithID("r1")))
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "acme", rec.CompanyID)
	assert.NotContains(t, rec.Doc, `"id"`)

	back, err := s.Deserialize(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "r1", back.ID)
	assert.Equal(t, "login", back.Action.Verb)
}

func TestOpenRequiresAddr(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

// openLive connects to TEST_REDIS_ADDR under a fresh prefix and removes
// the prefix's keys afterwards.
func openLive(t *testing.T, opts ...Option) *Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := "actionstore-test-" + uuid.NewString()
	s, err := Open(ctx, addr, append([]Option{WithPrefix(prefix), WithConnectRetry(3, 100*time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		iter := s.Client().Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			s.Client().Del(ctx, iter.Val())
		}
		s.Close()
	})
	return s
}

func TestLiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := engine.New(openLive(t, WithIDGenerator(engine.NewFixedGenerator("r-1"))), engine.WithSink(nil))

	created, err := e.CreateAction(ctx, testutil.NewAction())
	require.NoError(t, err)
	assert.Equal(t, "r-1", created.ID)

	found, err := e.FindActionByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, created, found)

	_, err = e.FindActionByID(ctx, "missing")
	assert.True(t, engine.IsNotFound(err))
}

func TestLiveDuplicateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	e := engine.New(openLive(t), engine.WithSink(nil))

	_, err := e.CreateAction(ctx, testutil.NewAction(testutil.WithID("d"), testutil.WithApp("first")))
	require.NoError(t, err)
	again, err := e.CreateManyActions(ctx, []action.Action{
		testutil.NewAction(testutil.WithID("d"), testutil.WithApp("second")),
		testutil.NewAction(testutil.WithID("e")),
	})
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "first", again[0].App)
	assert.Equal(t, "e", again[1].ID)
}

func TestLiveFindManyUsesCompanyAndTimeBounds(t *testing.T) {
	ctx := context.Background()
	e := engine.New(openLive(t), engine.WithSink(nil))

	batch := testutil.NewActions(4)
	batch[0].CompanyID = "other"
	_, err := e.CreateManyActions(ctx, batch)
	require.NoError(t, err)

	found, err := e.FindManyActions(ctx, nil, &action.FindActionFilters{
		CompanyID: "acme",
		Start:     testutil.At(1),
		End:       testutil.At(2),
	})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "act-003", found[0].ID)
	assert.Equal(t, "act-002", found[1].ID)
}
