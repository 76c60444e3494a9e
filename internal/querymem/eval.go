// Package querymem evaluates QueryIR selects in memory.
//
// It is the reference semantics for the portable fragment: the SQL
// compilers in querysql are tested for agreement with it, and the memory
// and Redis backends use it directly.
package querymem

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/queryir"
)

// Run filters, sorts and pages docs according to sel. docs is not
// modified. The result is never nil.
func Run(sel queryir.Select, docs []action.Object) ([]action.Object, error) {
	if err := queryir.Validate(sel).Err(); err != nil {
		return nil, err
	}

	m := newMatcher()
	out := make([]action.Object, 0, len(docs))
	for _, doc := range docs {
		if m.match(sel.Filter, doc) {
			out = append(out, doc)
		}
	}

	Sort(out, sel.OrderBy)
	return Page(out, sel.Limit, sel.Offset), nil
}

// Match reports whether doc satisfies p. A nil predicate matches
// everything.
func Match(p queryir.Predicate, doc action.Object) bool {
	return newMatcher().match(p, doc)
}

// Page applies offset then limit. A limit of 0 means no limit.
func Page(docs []action.Object, limit, offset int) []action.Object {
	if offset >= len(docs) {
		return []action.Object{}
	}
	docs = docs[offset:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// matcher holds per-evaluation state. cases.Caser is stateful, so a matcher
// must not be shared between goroutines.
type matcher struct {
	fold cases.Caser
}

func newMatcher() *matcher {
	return &matcher{fold: cases.Fold()}
}

func (m *matcher) match(p queryir.Predicate, v action.Value) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case queryir.Equals:
		got, ok := lookup(v, pred.Field)
		return ok && action.Equal(got, pred.Value)
	case queryir.In:
		got, ok := lookup(v, pred.Field)
		if !ok {
			return false
		}
		return slices.ContainsFunc(pred.Values, func(want action.Value) bool {
			return action.Equal(got, want)
		})
	case queryir.Range:
		got, ok := lookup(v, pred.Field)
		n, isNumber := got.(action.Number)
		if !ok || !isNumber {
			return false
		}
		f := float64(n)
		if pred.Gte != nil && f < *pred.Gte {
			return false
		}
		if pred.Lt != nil && f >= *pred.Lt {
			return false
		}
		return true
	case queryir.TimeRange:
		t, ok := instant(v, pred.Field)
		if !ok {
			return false
		}
		if pred.From != nil && t.Before(*pred.From) {
			return false
		}
		if pred.To != nil && t.After(*pred.To) {
			return false
		}
		return true
	case queryir.Contains:
		needle := m.normalize(pred.Text)
		for _, f := range pred.Fields {
			got, ok := lookup(v, f)
			s, isString := got.(action.String)
			if ok && isString && strings.Contains(m.normalize(string(s)), needle) {
				return true
			}
		}
		return false
	case queryir.Exists:
		got, ok := lookup(v, pred.Field)
		arr, isArray := got.(action.Array)
		if !ok || !isArray {
			return false
		}
		return slices.ContainsFunc(arr, func(elem action.Value) bool {
			return m.match(pred.Where, elem)
		})
	case queryir.And:
		for _, sub := range pred.Predicates {
			if !m.match(sub, v) {
				return false
			}
		}
		return true
	case queryir.Or:
		for _, sub := range pred.Predicates {
			if m.match(sub, v) {
				return true
			}
		}
		return false
	}
	return false
}

func (m *matcher) normalize(s string) string {
	return m.fold.String(norm.NFC.String(s))
}

func lookup(v action.Value, p queryir.Path) (action.Value, bool) {
	return action.Lookup(v, p)
}

// instant parses the string at p as an RFC 3339 timestamp.
func instant(v action.Value, p queryir.Path) (time.Time, bool) {
	got, ok := lookup(v, p)
	s, isString := got.(action.String)
	if !ok || !isString {
		return time.Time{}, false
	}
	t, err := action.ParseTimestamp(string(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Sort orders docs by o, then by id ascending. Documents missing the sort
// field, or holding null there, sort last in both directions. Sorting by
// timestamp compares parsed instants; unparsable timestamps count as
// missing.
func Sort(docs []action.Object, o queryir.OrderBy) {
	byTime := len(o.Field) == 1 && o.Field[0] == "timestamp"

	type keyed struct {
		doc  action.Object
		key  sortKey
		id   string
		have bool
	}
	rows := make([]keyed, len(docs))
	for i, doc := range docs {
		rows[i] = keyed{doc: doc, id: docID(doc)}
		if byTime {
			if t, ok := instant(doc, o.Field); ok {
				rows[i].key = sortKey{rank: rankTime, at: t.UnixNano()}
				rows[i].have = true
			}
			continue
		}
		if got, ok := lookup(doc, o.Field); ok {
			rows[i].key, rows[i].have = keyOf(got)
		}
	}

	slices.SortStableFunc(rows, func(a, b keyed) int {
		switch {
		case a.have && !b.have:
			return -1
		case !a.have && b.have:
			return 1
		case a.have && b.have:
			c := compareKeys(a.key, b.key)
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.id, b.id)
	})

	for i := range rows {
		docs[i] = rows[i].doc
	}
}

func docID(doc action.Object) string {
	if s, ok := doc["id"].(action.String); ok {
		return string(s)
	}
	return ""
}

const (
	rankTime = iota
	rankNumber
	rankString
	rankCompound
)

// sortKey orders numbers and booleans numerically, then strings by bytes,
// then arrays and objects by their JSON text.
type sortKey struct {
	rank int
	at   int64
	num  float64
	str  string
}

func keyOf(v action.Value) (sortKey, bool) {
	switch val := v.(type) {
	case action.Number:
		return sortKey{rank: rankNumber, num: float64(val)}, true
	case action.Bool:
		if val {
			return sortKey{rank: rankNumber, num: 1}, true
		}
		return sortKey{rank: rankNumber}, true
	case action.String:
		return sortKey{rank: rankString, str: string(val)}, true
	case action.Array, action.Object:
		data, err := action.MarshalValue(val)
		if err != nil {
			return sortKey{}, false
		}
		return sortKey{rank: rankCompound, str: string(data)}, true
	}
	return sortKey{}, false
}

func compareKeys(a, b sortKey) int {
	if c := cmp.Compare(a.rank, b.rank); c != 0 {
		return c
	}
	switch a.rank {
	case rankTime:
		return cmp.Compare(a.at, b.at)
	case rankNumber:
		if math.IsNaN(a.num) || math.IsNaN(b.num) {
			return 0
		}
		return cmp.Compare(a.num, b.num)
	}
	return strings.Compare(a.str, b.str)
}
