package queryir

import (
	"slices"

	"github.com/roach88/actionstore/internal/action"
)

// SearchFields are the top-level string fields matched by the free-text
// query filter. Agent and target id, name and type are searched as well.
var SearchFields = []Path{
	{"id"},
	{"clientId"},
	{"app"},
	{"environment"},
	{"sessionId"},
	{"action", "type"},
	{"action", "verb"},
	{"action", "object"},
}

var entitySearchFields = []Path{{"id"}, {"name"}, {"type"}}

// Build translates search options and filters into a Select.
//
// Translation rules:
//   - scalar-or-array leaves become Equals (one value) or In (many)
//   - object leaves become an Or across the given objects of an And across
//     each object's set fields
//   - array-valued Action fields (traceIds, agents, targets, changes) are
//     matched with Exists
//   - start/end become an inclusive TimeRange on timestamp
//   - distinct filter fields are combined with And
//
// Build assumes opts and filters were validated; unparsable start/end values
// are ignored.
func Build(opts *action.FindActionOptions, filters *action.FindActionFilters) Select {
	sel := Select{
		OrderBy: OrderBy{Field: Path(opts.SortPath()), Desc: opts.Descending()},
		Limit:   opts.EffectiveLimit(),
		Offset:  opts.Offset(),
	}
	if filters == nil {
		return sel
	}
	f := filters

	var preds []Predicate
	add := func(p Predicate) {
		if p != nil {
			preds = append(preds, p)
		}
	}

	add(eqString(Path{"companyId"}, f.CompanyID))

	start, hasStart := f.StartTime()
	end, hasEnd := f.EndTime()
	if hasStart || hasEnd {
		tr := TimeRange{Field: Path{"timestamp"}}
		if hasStart {
			tr.From = &start
		}
		if hasEnd {
			tr.To = &end
		}
		add(tr)
	}

	add(anyOf(Path{"id"}, f.ID))
	add(anyOf(Path{"clientId"}, f.ClientID))
	add(anyOf(Path{"app"}, f.App))
	add(anyOf(Path{"environment"}, f.Environment))
	add(orEach(f.Framework.Values(), func(ff action.FrameworkFilter) Predicate {
		return allOf(
			eqString(Path{"framework", "name"}, ff.Name),
			eqString(Path{"framework", "version"}, ff.Version),
		)
	}))
	add(anyOf(Path{"sessionId"}, f.SessionID))
	if !f.TraceIDs.IsZero() {
		add(Exists{Field: Path{"traceIds"}, Where: anyOf(Path{}, f.TraceIDs)})
	}
	add(orEach(f.Action.Values(), func(d action.DescriptorFilter) Predicate {
		return allOf(
			eqString(Path{"action", "id"}, d.ID),
			eqString(Path{"action", "type"}, d.Type),
			eqString(Path{"action", "verb"}, d.Verb),
			eqString(Path{"action", "object"}, d.Object),
		)
	}))
	add(entities(Path{"agents"}, f.Agents))
	add(entities(Path{"targets"}, f.Targets))
	add(orEach(f.Request.Values(), requestMatch))

	if r := f.Response; r != nil {
		add(anyOf(Path{"response", "status"}, r.Status))
		add(numberRange(Path{"response", "time"}, r.Time))
		add(orEach(r.Body.Values(), stringMap(Path{"response", "body"})))
		add(orEach(r.Headers.Values(), stringMap(Path{"response", "headers"})))
	}

	add(orEach(f.Changes.Values(), func(c action.ChangeFilter) Predicate {
		where := allOf(
			eqString(Path{"model"}, c.Model),
			eqString(Path{"operation"}, c.Operation),
			eqString(Path{"id"}, c.ID),
			eqString(Path{"path"}, c.Path),
			eqValue(Path{"before"}, c.Before),
			eqValue(Path{"after"}, c.After),
			stringMap(Path{"meta"})(c.Meta),
		)
		return Exists{Field: Path{"changes"}, Where: where}
	}))

	if c := f.Cost; c != nil {
		add(anyOf(Path{"cost", "currency"}, c.Currency))
		add(numberRange(Path{"cost", "amount"}, c.Amount))
	}

	add(orEach(f.Meta.Values(), stringMap(Path{"meta"})))

	if f.Query != "" {
		add(Or{Predicates: []Predicate{
			Contains{Fields: SearchFields, Text: f.Query},
			Exists{Field: Path{"agents"}, Where: Contains{Fields: entitySearchFields, Text: f.Query}},
			Exists{Field: Path{"targets"}, Where: Contains{Fields: entitySearchFields, Text: f.Query}},
		}})
	}

	if len(preds) > 0 {
		sel.Filter = And{Predicates: preds}
	}
	return sel
}

func entities(field Path, leaf action.OneOrMany[action.EntityFilter]) Predicate {
	return orEach(leaf.Values(), func(ef action.EntityFilter) Predicate {
		where := allOf(
			eqString(Path{"id"}, ef.ID),
			eqString(Path{"type"}, ef.Type),
			eqString(Path{"name"}, ef.Name),
			stringMap(Path{"meta"})(ef.Meta),
		)
		return Exists{Field: field, Where: where}
	})
}

func requestMatch(rf action.RequestFilter) Predicate {
	keys := make([]string, 0, len(rf))
	for k := range rf {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var preds []Predicate
	for _, k := range keys {
		m := rf[k]
		if m.Fields != nil {
			preds = append(preds, stringMap(Path{"request", k})(m.Fields))
			continue
		}
		preds = append(preds, eqString(Path{"request", k}, m.Text))
	}
	return allOf(preds...)
}

// stringMap returns a builder matching every key of a flat string map
// under prefix.
func stringMap(prefix Path) func(action.StringMap) Predicate {
	return func(m action.StringMap) Predicate {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		preds := make([]Predicate, 0, len(keys))
		for _, k := range keys {
			preds = append(preds, Equals{Field: child(prefix, k), Value: action.String(m[k])})
		}
		return allOf(preds...)
	}
}

func anyOf(field Path, leaf action.OneOrMany[string]) Predicate {
	values := leaf.Values()
	switch len(values) {
	case 0:
		return nil
	case 1:
		return Equals{Field: field, Value: action.String(values[0])}
	}
	in := In{Field: field, Values: make([]action.Value, len(values))}
	for i, v := range values {
		in.Values[i] = action.String(v)
	}
	return in
}

func eqString(field Path, v string) Predicate {
	if v == "" {
		return nil
	}
	return Equals{Field: field, Value: action.String(v)}
}

func eqValue(field Path, v action.Value) Predicate {
	if v == nil {
		return nil
	}
	return Equals{Field: field, Value: v}
}

func numberRange(field Path, r *action.Range) Predicate {
	if r == nil || (r.Gte == nil && r.Lt == nil) {
		return nil
	}
	return Range{Field: field, Gte: r.Gte, Lt: r.Lt}
}

// allOf conjoins the non-nil predicates. nil means unconstrained.
func allOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// orEach disjoins one predicate per item. If any item is unconstrained the
// whole disjunction is, and nil is returned.
func orEach[T any](items []T, build func(T) Predicate) Predicate {
	if len(items) == 0 {
		return nil
	}
	preds := make([]Predicate, 0, len(items))
	for _, item := range items {
		p := build(item)
		if p == nil {
			return nil
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return Or{Predicates: preds}
}

func child(prefix Path, key string) Path {
	out := make(Path, 0, len(prefix)+1)
	out = append(out, prefix...)
	return append(out, key)
}
