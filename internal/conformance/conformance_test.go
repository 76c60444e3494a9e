package conformance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/memstore"
	"github.com/roach88/actionstore/internal/pgstore"
	"github.com/roach88/actionstore/internal/redisstore"
	"github.com/roach88/actionstore/internal/store"
	"github.com/roach88/actionstore/internal/testutil"
)

// factory opens a fresh, empty backend for one scenario.
type factory func(t *testing.T) engine.Actions

func quiet() engine.Option { return engine.WithSink(nil) }

func backends() map[string]factory {
	out := map[string]factory{
		"memory": func(t *testing.T) engine.Actions {
			return engine.New(memstore.New(), quiet())
		},
		"fake": func(t *testing.T) engine.Actions {
			return engine.New(testutil.NewFakeBackend(), quiet())
		},
		"sqlite": func(t *testing.T) engine.Actions {
			s, err := store.Open(filepath.Join(t.TempDir(), "conformance.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return engine.New(s, quiet())
		},
	}

	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		out["postgres"] = func(t *testing.T) engine.Actions {
			ctx := context.Background()
			s, err := pgstore.Open(ctx, dsn, pgstore.WithConnectRetry(3, 100*time.Millisecond))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			_, err = s.Pool().Exec(ctx, "TRUNCATE actions")
			require.NoError(t, err)
			return engine.New(s, quiet())
		}
	}

	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		out["redis"] = func(t *testing.T) engine.Actions {
			ctx := context.Background()
			prefix := "actionstore-conformance-" + uuid.NewString()
			s, err := redisstore.Open(ctx, addr,
				redisstore.WithPrefix(prefix),
				redisstore.WithConnectRetry(3, 100*time.Millisecond))
			require.NoError(t, err)
			t.Cleanup(func() {
				iter := s.Client().Scan(ctx, 0, prefix+":*", 100).Iterator()
				for iter.Next(ctx) {
					s.Client().Del(ctx, iter.Val())
				}
				s.Close()
			})
			return engine.New(s, quiet())
		}
	}
	return out
}

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	ctx := context.Background()
	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			reference, err := Run(ctx, backends()["memory"](t), sc)
			require.NoError(t, err)
			require.True(t, reference.Pass, "memory: %v", reference.Errors)

			for name, open := range backends() {
				if name == "memory" {
					continue
				}
				t.Run(name, func(t *testing.T) {
					res, err := Run(ctx, open(t), sc)
					require.NoError(t, err)
					assert.True(t, res.Pass, "%v", res.Errors)
					assert.Equal(t, reference.Trace, res.Trace, "trace differs from memory backend")
				})
			}
		})
	}
}

func TestRunReportsFailedExpectations(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong
description: Expectations that cannot hold.
steps:
  - op: find_by_id
    id: ghost
    expect:
      ids: [ghost]
  - op: find_many
    filters: {companyId: acme}
    expect:
      ids: [a]
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), engine.New(memstore.New(), quiet()), sc)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], `error = "not_found", want ""`)
	assert.Contains(t, res.Errors[1], "ids = []")

	require.Len(t, res.Trace, 2)
	assert.Equal(t, TraceEvent{Step: 0, Op: OpFindByID, IDs: []string{}, Error: ErrNotFound}, res.Trace[0])
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nstepz: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: find_many}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps: [{op: find_many}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: d\nsteps: [{op: delete}]\n",
			wantErr: `unknown op "delete"`,
		},
		{
			name:    "create without action",
			yaml:    "name: x\ndescription: d\nsteps: [{op: create}]\n",
			wantErr: "action is required for create",
		},
		{
			name:    "unknown error kind",
			yaml:    "name: x\ndescription: d\nsteps: [{op: find_many, expect: {error: boom}}]\n",
			wantErr: `unknown error kind "boom"`,
		},
		{
			name:    "fields without validation",
			yaml:    "name: x\ndescription: d\nsteps: [{op: find_many, expect: {fields: [a]}}]\n",
			wantErr: "fields require error: validation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDirRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	body := []byte("name: same\ndescription: d\nsteps: [{op: find_many}]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), body, 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"same" already used by a.yaml`)
}

func TestSubset(t *testing.T) {
	got := map[string]any{
		"a": 1.0,
		"b": map[string]any{"c": "x", "d": true},
		"e": []any{"p", "q"},
	}

	_, ok := subset(got, map[string]any{"b": map[string]any{"c": "x"}}, "")
	assert.True(t, ok)

	path, ok := subset(got, map[string]any{"b": map[string]any{"c": "y"}}, "")
	assert.False(t, ok)
	assert.Equal(t, ".b.c", path)

	path, ok = subset(got, map[string]any{"e": []any{"p"}}, "")
	assert.False(t, ok)
	assert.Equal(t, ".e", path)

	path, ok = subset(got, map[string]any{"z": nil}, "")
	assert.False(t, ok)
	assert.Equal(t, ".z", path)
}
