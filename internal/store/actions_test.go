package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/testutil"
)

func TestSerialize_SplitsColumns(t *testing.T) {
	s := createTestStore(t)

	row, err := s.Serialize(context.Background(), testutil.NewAction(testutil.WithID("a1")))
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	if row.ID != "a1" || row.CompanyID != "acme" {
		t.Errorf("row = %+v, want id a1 in company acme", row)
	}
	if !row.OccurredAt.Valid || row.OccurredAt.Int64 != testutil.Epoch.UnixNano() {
		t.Errorf("OccurredAt = %+v, want %d", row.OccurredAt, testutil.Epoch.UnixNano())
	}
}

func TestSerialize_UnparsableTimestamp(t *testing.T) {
	s := createTestStore(t)

	row, err := s.Serialize(context.Background(), testutil.NewAction(testutil.WithTimestamp("yesterday")))
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	if row.OccurredAt.Valid {
		t.Errorf("OccurredAt = %+v, want NULL", row.OccurredAt)
	}
}

func TestCreate_AssignsID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	row, err := s.Serialize(ctx, testutil.NewAction())
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	created, err := s.Create(ctx, row)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() did not assign an id")
	}

	found, err := s.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID() failed: %v", err)
	}
	if found != created {
		t.Errorf("FindByID() = %+v, want %+v", found, created)
	}
}

func TestCreate_DuplicateIDReturnsExisting(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first, _ := s.Serialize(ctx, testutil.NewAction(testutil.WithID("dup"), testutil.WithApp("first")))
	second, _ := s.Serialize(ctx, testutil.NewAction(testutil.WithID("dup"), testutil.WithApp("second")))

	if _, err := s.Create(ctx, first); err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}
	got, err := s.Create(ctx, second)
	if err != nil {
		t.Fatalf("second Create() failed: %v", err)
	}
	if got.Doc != first.Doc {
		t.Errorf("duplicate Create() returned %s, want the stored %s", got.Doc, first.Doc)
	}
}

func TestCreateMany_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	var rows []Row
	for _, a := range testutil.NewActions(5) {
		row, err := s.Serialize(ctx, a)
		if err != nil {
			t.Fatalf("Serialize() failed: %v", err)
		}
		rows = append(rows, row)
	}
	rows[2].ID = ""

	created, err := s.CreateMany(ctx, rows)
	if err != nil {
		t.Fatalf("CreateMany() failed: %v", err)
	}
	if len(created) != len(rows) {
		t.Fatalf("CreateMany() returned %d rows, want %d", len(created), len(rows))
	}
	for i := range rows {
		if rows[i].ID != "" && created[i].ID != rows[i].ID {
			t.Errorf("created[%d].ID = %q, want %q", i, created[i].ID, rows[i].ID)
		}
	}
	if created[2].ID == "" {
		t.Error("CreateMany() did not assign an id")
	}
}

func TestFindByID_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.FindByID(context.Background(), "missing")
	if !engine.IsNotFound(err) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
}

func TestFindMany_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.FindMany(context.Background(), nil, &action.FindActionFilters{CompanyID: "acme"})
	if err != nil {
		t.Fatalf("FindMany() failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("FindMany() = %#v, want empty non-nil slice", rows)
	}
}

func TestEngine_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := engine.New(s, engine.WithSink(nil))

	in := testutil.NewAction(
		testutil.WithTraceIDs("t1", "t2"),
		testutil.WithMeta(action.Object{"tier": action.String("gold"), "n": action.Number(2)}),
		testutil.WithCost(1.5, "USD"),
	)
	created, err := e.CreateAction(ctx, in)
	if err != nil {
		t.Fatalf("CreateAction() failed: %v", err)
	}
	in.ID = created.ID
	if !reflect.DeepEqual(created, in) {
		t.Errorf("CreateAction() = %+v, want %+v", created, in)
	}

	found, err := e.FindActionByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindActionByID() failed: %v", err)
	}
	if !reflect.DeepEqual(found, in) {
		t.Errorf("FindActionByID() = %+v, want %+v", found, in)
	}
}

func TestEngine_FindManyActions(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := engine.New(s, engine.WithSink(nil))

	batch := testutil.NewActions(4)
	batch[1].App = "auth"
	batch[3].CompanyID = "globex"
	if _, err := e.CreateManyActions(ctx, batch); err != nil {
		t.Fatalf("CreateManyActions() failed: %v", err)
	}

	cases := []struct {
		name    string
		opts    *action.FindActionOptions
		filters *action.FindActionFilters
		want    []string
	}{
		{"company newest first", nil, &action.FindActionFilters{CompanyID: "acme"}, []string{"act-003", "act-002", "act-001"}},
		{"app", nil, &action.FindActionFilters{CompanyID: "acme", App: action.One("auth")}, []string{"act-002"}},
		{"paged", &action.FindActionOptions{Page: 2, Limit: 2}, &action.FindActionFilters{CompanyID: "acme"}, []string{"act-001"}},
		{"ascending", &action.FindActionOptions{SortDirection: action.SortAsc}, &action.FindActionFilters{CompanyID: "acme"}, []string{"act-001", "act-002", "act-003"}},
		{"agent", nil, &action.FindActionFilters{CompanyID: "acme", Agents: action.One(action.EntityFilter{Name: "Ada"})}, []string{"act-003", "act-002", "act-001"}},
		{"query", nil, &action.FindActionFilters{CompanyID: "acme", Query: "AUTH"}, []string{"act-002"}},
		{"start", nil, &action.FindActionFilters{CompanyID: "acme", Start: testutil.At(1)}, []string{"act-003", "act-002"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			found, err := e.FindManyActions(ctx, tc.opts, tc.filters)
			if err != nil {
				t.Fatalf("FindManyActions() failed: %v", err)
			}
			got := make([]string, len(found))
			for i, a := range found {
				got[i] = a.ID
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCreate_UsesIDGenerator(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir()+"/ids.db", WithIDGenerator(engine.NewFixedGenerator("fixed-1", "fixed-2")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	e := engine.New(s, engine.WithSink(nil))
	created, err := e.CreateManyActions(ctx, []action.Action{testutil.NewAction(), testutil.NewAction()})
	if err != nil {
		t.Fatalf("CreateManyActions() failed: %v", err)
	}
	if created[0].ID != "fixed-1" || created[1].ID != "fixed-2" {
		t.Errorf("ids = %q, %q, want fixed-1, fixed-2", created[0].ID, created[1].ID)
	}
}
