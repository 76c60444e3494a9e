package conformance

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
)

// TraceEvent is the backend-independent outcome of one step.
type TraceEvent struct {
	Step   int      `json:"step"`
	Op     string   `json:"op"`
	IDs    []string `json:"ids"`
	Error  string   `json:"error,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes sc against actions. Input that cannot be decoded is an
// error; failed expectations are reported in the Result.
func Run(ctx context.Context, actions engine.Actions, sc *Scenario) (*Result, error) {
	res := NewResult()
	for i, step := range sc.Steps {
		out, err := runStep(ctx, actions, step)
		if err != nil {
			return nil, fmt.Errorf("%s: steps[%d]: %w", sc.Name, i, err)
		}
		out.event.Step = i
		out.event.Op = step.Op
		res.Trace = append(res.Trace, out.event)
		if step.Expect != nil {
			check(res, i, step.Expect, out)
		}
	}
	return res, nil
}

type outcome struct {
	event   TraceEvent
	results []action.Action
}

func runStep(ctx context.Context, actions engine.Actions, step Step) (outcome, error) {
	var (
		results []action.Action
		callErr error
	)

	switch step.Op {
	case OpCreate:
		a, err := decodeAction(step.Action)
		if err != nil {
			return outcome{}, err
		}
		var created action.Action
		if created, callErr = actions.CreateAction(ctx, a); callErr == nil {
			results = []action.Action{created}
		}

	case OpCreateMany:
		batch := make([]action.Action, len(step.Actions))
		for i, doc := range step.Actions {
			a, err := decodeAction(doc)
			if err != nil {
				return outcome{}, fmt.Errorf("actions[%d]: %w", i, err)
			}
			batch[i] = a
		}
		results, callErr = actions.CreateManyActions(ctx, batch)

	case OpFindByID:
		var found action.Action
		if found, callErr = actions.FindActionByID(ctx, step.ID); callErr == nil {
			results = []action.Action{found}
		}

	case OpFindMany:
		var opts *action.FindActionOptions
		if step.Options != nil {
			opts = &action.FindActionOptions{}
			if err := remarshal(step.Options, opts); err != nil {
				return outcome{}, fmt.Errorf("options: %w", err)
			}
		}
		var filters *action.FindActionFilters
		if step.Filters != nil {
			filters = &action.FindActionFilters{}
			if err := remarshal(step.Filters, filters); err != nil {
				return outcome{}, fmt.Errorf("filters: %w", err)
			}
		}
		results, callErr = actions.FindManyActions(ctx, opts, filters)

	default:
		return outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}

	ev := TraceEvent{IDs: []string{}}
	for _, a := range results {
		ev.IDs = append(ev.IDs, a.ID)
	}
	if callErr != nil {
		ev.Error, ev.Fields = classify(callErr)
	}
	return outcome{event: ev, results: results}, nil
}

func classify(err error) (string, []string) {
	if verrs, ok := action.AsValidationErrors(err); ok {
		return ErrValidation, verrs.Fields()
	}
	if engine.IsNotFound(err) {
		return ErrNotFound, nil
	}
	return ErrOther, []string{err.Error()}
}

func check(res *Result, i int, want *Expect, got outcome) {
	ev := got.event
	if ev.Error != want.Error {
		res.AddError("steps[%d]: error = %q, want %q (%v)", i, ev.Error, want.Error, ev.Fields)
		return
	}
	if want.Fields != nil && !slices.Equal(ev.Fields, want.Fields) {
		res.AddError("steps[%d]: violation fields = %v, want %v", i, ev.Fields, want.Fields)
	}
	if want.IDs != nil && !slices.Equal(ev.IDs, want.IDs) {
		res.AddError("steps[%d]: ids = %v, want %v", i, ev.IDs, want.IDs)
	}
	if want.Match != nil {
		if len(got.results) == 0 {
			res.AddError("steps[%d]: match given but no action returned", i)
			return
		}
		doc, err := action.ToObject(got.results[0])
		if err != nil {
			res.AddError("steps[%d]: encode result: %v", i, err)
			return
		}
		var expected any
		if err := remarshal(want.Match, &expected); err != nil {
			res.AddError("steps[%d]: encode match: %v", i, err)
			return
		}
		if path, ok := subset(action.ToAny(doc), expected, ""); !ok {
			res.AddError("steps[%d]: result differs from match at %q", i, path)
		}
	}
}

// subset reports whether want is contained in got: maps by key, lists
// element-wise with equal length, scalars by equality. On mismatch it
// returns the first differing path.
func subset(got, want any, path string) (string, bool) {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return path, false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok {
				return path + "." + k, false
			}
			if p, ok := subset(gv, wv, path+"."+k); !ok {
				return p, false
			}
		}
		return "", true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return path, false
		}
		for i := range w {
			if p, ok := subset(g[i], w[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	}
	if !reflect.DeepEqual(got, want) {
		return path, false
	}
	return "", true
}

// decodeAction turns a YAML document into an Action without validating
// it or filling defaults, so a missing agents list stays missing.
func decodeAction(doc map[string]any) (action.Action, error) {
	var a action.Action
	if err := remarshal(doc, &a); err != nil {
		return action.Action{}, err
	}
	return a, nil
}

// remarshal converts YAML-decoded data into out through JSON, so the
// model's JSON decoding rules apply.
func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
