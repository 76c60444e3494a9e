package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/action"
)

func str(s string) action.Value { return action.String(s) }

func TestBuild_Defaults(t *testing.T) {
	sel := Build(nil, nil)

	assert.Equal(t, Select{
		OrderBy: OrderBy{Field: Path{"timestamp"}, Desc: true},
		Limit:   action.DefaultLimit,
	}, sel)
}

func TestBuild_Options(t *testing.T) {
	sel := Build(&action.FindActionOptions{Page: 3, Limit: 10, SortBy: "cost.amount", SortDirection: action.SortAsc}, nil)

	assert.Equal(t, OrderBy{Field: Path{"cost", "amount"}}, sel.OrderBy)
	assert.Equal(t, 10, sel.Limit)
	assert.Equal(t, 20, sel.Offset)
}

func TestBuild_CompanyOnly(t *testing.T) {
	sel := Build(nil, &action.FindActionFilters{CompanyID: "acme"})

	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: Path{"companyId"}, Value: str("acme")},
	}}, sel.Filter)
}

func TestBuild_ScalarArrayAndElementFilters(t *testing.T) {
	ten := 10.0
	filters := &action.FindActionFilters{
		CompanyID:   "acme",
		Start:       "2024-01-01T00:00:00Z",
		App:         action.One("billing"),
		Environment: action.Many("prod", "staging"),
		TraceIDs:    action.One("t1"),
		Agents:      action.Many(action.EntityFilter{Type: "user"}, action.EntityFilter{}),
		Response:    &action.ResponseFilter{Time: &action.Range{Gte: &ten}},
		Meta:        action.One(action.StringMap{"b": "2", "a": "1"}),
	}
	start, err := time.Parse(time.RFC3339Nano, "2024-01-01T00:00:00Z")
	require.NoError(t, err)

	sel := Build(nil, filters)

	want := And{Predicates: []Predicate{
		Equals{Field: Path{"companyId"}, Value: str("acme")},
		TimeRange{Field: Path{"timestamp"}, From: &start},
		Equals{Field: Path{"app"}, Value: str("billing")},
		In{Field: Path{"environment"}, Values: []action.Value{str("prod"), str("staging")}},
		Exists{Field: Path{"traceIds"}, Where: Equals{Field: Path{}, Value: str("t1")}},
		Or{Predicates: []Predicate{
			Exists{Field: Path{"agents"}, Where: Equals{Field: Path{"type"}, Value: str("user")}},
			Exists{Field: Path{"agents"}},
		}},
		Range{Field: Path{"response", "time"}, Gte: &ten},
		And{Predicates: []Predicate{
			Equals{Field: Path{"meta", "a"}, Value: str("1")},
			Equals{Field: Path{"meta", "b"}, Value: str("2")},
		}},
	}}
	assert.Equal(t, want, sel.Filter)
	assert.True(t, Validate(sel).IsPortable, "%v", Validate(sel).Warnings)
}

func TestBuild_RequestChangesCost(t *testing.T) {
	filters := &action.FindActionFilters{
		CompanyID: "acme",
		Request: action.One(action.RequestFilter{
			"method": {Text: "POST"},
			"query":  {Fields: action.StringMap{"page": "2"}},
		}),
		Changes: action.One(action.ChangeFilter{Model: "invoice", Before: action.Number(10)}),
		Cost:    &action.CostFilter{Currency: action.Many("USD", "EUR")},
	}

	sel := Build(nil, filters)

	want := And{Predicates: []Predicate{
		Equals{Field: Path{"companyId"}, Value: str("acme")},
		And{Predicates: []Predicate{
			Equals{Field: Path{"request", "method"}, Value: str("POST")},
			Equals{Field: Path{"request", "query", "page"}, Value: str("2")},
		}},
		Exists{Field: Path{"changes"}, Where: And{Predicates: []Predicate{
			Equals{Field: Path{"model"}, Value: str("invoice")},
			Equals{Field: Path{"before"}, Value: action.Number(10)},
		}}},
		In{Field: Path{"cost", "currency"}, Values: []action.Value{str("USD"), str("EUR")}},
	}}
	assert.Equal(t, want, sel.Filter)
}

func TestBuild_Query(t *testing.T) {
	sel := Build(nil, &action.FindActionFilters{CompanyID: "acme", Query: "ada"})

	and, ok := sel.Filter.(And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 2)
	assert.Equal(t, Or{Predicates: []Predicate{
		Contains{Fields: SearchFields, Text: "ada"},
		Exists{Field: Path{"agents"}, Where: Contains{Fields: entitySearchFields, Text: "ada"}},
		Exists{Field: Path{"targets"}, Where: Contains{Fields: entitySearchFields, Text: "ada"}},
	}}, and.Predicates[1])
}

func TestBuild_UnconstrainedItemDropsLeaf(t *testing.T) {
	filters := &action.FindActionFilters{
		CompanyID: "acme",
		Framework: action.Many(action.FrameworkFilter{Name: "express"}, action.FrameworkFilter{}),
		Action:    action.One(action.DescriptorFilter{}),
	}

	sel := Build(nil, filters)

	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: Path{"companyId"}, Value: str("acme")},
	}}, sel.Filter)
}
