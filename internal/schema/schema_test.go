package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/action"
)

const validAction = `{
	"timestamp": "2024-03-01T12:00:00Z",
	"companyId": "acme",
	"action": {"type": "invoice", "verb": "update"},
	"agents": [{"id": "u1", "type": "user", "meta": {"role": "admin"}}],
	"response": {"status": "200", "time": 12.5},
	"cost": {"amount": 0.5, "currency": "USD", "components": [{"key": "tokens", "amount": 0.5}]},
	"meta": {"nested": {"a": [1, 2]}},
	"unknownField": true
}`

func mustSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	errs, ok := action.AsValidationErrors(err)
	require.True(t, ok, "expected ValidationErrors, got %T: %v", err, err)
	return errs.Fields()
}

func TestParseActionValid(t *testing.T) {
	a, err := mustSchema(t).ParseAction([]byte(validAction))
	require.NoError(t, err)

	assert.Equal(t, "invoice", a.Action.Type)
	require.Len(t, a.Agents, 1)
	assert.Equal(t, action.Object{"role": action.String("admin")}, a.Agents[0].Meta)
	require.NotNil(t, a.Response.Time)
	assert.Equal(t, 12.5, *a.Response.Time)
	assert.Equal(t, 0.5, a.Cost.Amount)
}

func TestParseActionKeepsEmptyTraceIDs(t *testing.T) {
	a, err := mustSchema(t).ParseAction([]byte(`{"timestamp":"2024-03-01T12:00:00Z","traceIds":["",""],"action":{"type":"a","verb":"v"},"agents":[],"targets":[]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, a.TraceIDs)
	assert.Equal(t, []action.Entity{}, a.Targets)
}

func TestParseActionReportsEveryMissingField(t *testing.T) {
	_, err := mustSchema(t).ParseAction([]byte(`{"timestamp": "2024-03-01T12:00:00Z", "action": {}}`))

	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "action.type")
	assert.Contains(t, fields, "action.verb")
	assert.Contains(t, fields, "agents")
}

func TestParseActionRejectsNumericStrings(t *testing.T) {
	doc := `{
		"timestamp": "2024-03-01T12:00:00Z",
		"action": {"type": "t", "verb": "v"},
		"agents": [],
		"response": {"time": "12"},
		"cost": {"amount": "1.5", "currency": "USD"}
	}`
	_, err := mustSchema(t).ParseAction([]byte(doc))

	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "response.time")
	assert.Contains(t, fields, "cost.amount")
}

func TestParseActionNestedListPath(t *testing.T) {
	doc := `{
		"timestamp": "2024-03-01T12:00:00Z",
		"action": {"type": "t", "verb": "v"},
		"agents": [{"type": "user"}, {"id": "x"}]
	}`
	_, err := mustSchema(t).ParseAction([]byte(doc))
	assert.Contains(t, fieldsOf(t, err), "agents[1].type")
}

func TestParseActionInvalidJSON(t *testing.T) {
	_, err := mustSchema(t).ParseAction([]byte(`{"timestamp":`))
	require.Error(t, err)
	_, ok := action.AsValidationErrors(err)
	assert.True(t, ok)
}

func TestParseActionsArray(t *testing.T) {
	s := mustSchema(t)

	actions, err := s.ParseActions([]byte("[" + validAction + "," + validAction + "]"))
	require.NoError(t, err)
	assert.Len(t, actions, 2)

	single, err := s.ParseActions([]byte(validAction))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	bad := `[` + validAction + `, {"timestamp": "x", "action": {"type": "t"}, "agents": []}]`
	_, err = s.ParseActions([]byte(bad))
	assert.Equal(t, []string{"[1].action.verb"}, fieldsOf(t, err))
}

func TestParseFiltersScalarOrArray(t *testing.T) {
	s := mustSchema(t)

	for name, doc := range map[string]string{
		"bare":  `{"companyId": "acme", "app": "billing", "agents": {"type": "user"}, "meta": {"k": "v"}}`,
		"array": `{"companyId": "acme", "app": ["billing", "crm"], "agents": [{"type": "user"}], "meta": [{"k": "v"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			f, err := s.ParseFilters([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, "acme", f.CompanyID)
			assert.NotEmpty(t, f.App.Values())
			assert.Equal(t, []action.EntityFilter{{Type: "user"}}, f.Agents.Values())
		})
	}
}

func TestParseFiltersRejectsMixedArray(t *testing.T) {
	_, err := mustSchema(t).ParseFilters([]byte(`{"companyId": "acme", "app": ["billing", 7]}`))

	fields := fieldsOf(t, err)
	found := false
	for _, f := range fields {
		if strings.HasPrefix(f, "app") {
			found = true
		}
	}
	assert.True(t, found, "fields: %v", fields)
}

func TestParseFiltersRequiresCompanyAndOffset(t *testing.T) {
	_, err := mustSchema(t).ParseFilters([]byte(`{"start": "2024-01-01T00:00:00"}`))

	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "companyId")
	assert.Contains(t, fields, "start")
}

func TestParseOptions(t *testing.T) {
	s := mustSchema(t)

	o, err := s.ParseOptions([]byte(`{"page": 2, "limit": 25, "sortBy": "response.time", "sortDirection": "asc"}`))
	require.NoError(t, err)
	assert.Equal(t, action.FindActionOptions{Page: 2, Limit: 25, SortBy: "response.time", SortDirection: action.SortAsc}, o)

	_, err = s.ParseOptions([]byte(`{"page": 1.5, "limit": 0, "sortDirection": "sideways"}`))
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "page")
	assert.Contains(t, fields, "limit")
	assert.Contains(t, fields, "sortDirection")
}

// The CUE schema and the typed validators must agree on typed candidates.
func TestSchemaAgreesWithTypedValidation(t *testing.T) {
	s := mustSchema(t)

	cases := map[string]string{
		"valid":             validAction,
		"missing verb":      `{"timestamp":"t","action":{"type":"a"},"agents":[]}`,
		"empty type":        `{"timestamp":"t","action":{"type":"","verb":"v"},"agents":[]}`,
		"missing agents":    `{"timestamp":"t","action":{"type":"a","verb":"v"}}`,
		"agent type":        `{"timestamp":"t","action":{"type":"a","verb":"v"},"agents":[{"id":"x"}]}`,
		"missing timestamp": `{"action":{"type":"a","verb":"v"},"agents":[]}`,
		"cost currency":     `{"timestamp":"t","action":{"type":"a","verb":"v"},"agents":[],"cost":{"amount":1}}`,
		"change operation":  `{"timestamp":"t","action":{"type":"a","verb":"v"},"agents":[],"changes":[{"model":"m"}]}`,
		"component key":     `{"timestamp":"t","action":{"type":"a","verb":"v"},"agents":[],"cost":{"amount":1,"currency":"USD","components":[{"amount":1}]}}`,
		"empty trace id":    `{"timestamp":"t","traceIds":["t1",""],"action":{"type":"a","verb":"v"},"agents":[]}`,
		"empty collections": `{"timestamp":"t","traceIds":[],"action":{"type":"a","verb":"v"},"agents":[],"targets":[],"request":{},"meta":{}}`,
		"with changes":      `{"timestamp":"t","action":{"type":"a","verb":"v"},"agents":[],"changes":[{"model":"m","operation":"update","before":null,"after":{"x":1}}]}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cueErrs := s.Check(DefAction, []byte(doc))

			var a action.Action
			require.NoError(t, json.Unmarshal([]byte(doc), &a))
			goErrs := a.Validate()

			assert.Equal(t, len(goErrs) == 0, len(cueErrs) == 0, "cue: %v go: %v", cueErrs, goErrs)
		})
	}
}

func TestSourceEmbedsDefinitions(t *testing.T) {
	src := Source()
	for _, def := range []string{DefAction, DefFilters, DefOptions} {
		assert.Contains(t, src, def+":")
	}
}

func TestDefaultIsShared(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)
	assert.Same(t, a, b)
}
