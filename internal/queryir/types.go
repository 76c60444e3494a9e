package queryir

import (
	"strings"
	"time"

	"github.com/roach88/actionstore/internal/action"
)

// Path addresses a field inside an action document, one segment per object
// key. Inside Exists, paths are relative to the array element and an empty
// path means the element itself.
type Path []string

// String renders the path dotted, for diagnostics.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Predicate types:
//   - Equals: field = literal value
//   - In: field is one of several literal values
//   - Range: numeric field within [Gte, Lt)
//   - TimeRange: timestamp field within [From, To]
//   - Contains: case-insensitive substring match on any of several fields
//   - Exists: some element of an array field satisfies a predicate
//   - And / Or: conjunction / disjunction
//
// A field that is absent from a document never satisfies a comparison.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select is the single query shape: filter, order, then page.
//
// Semantics:
//
//	SELECT * FROM actions WHERE <filter>
//	ORDER BY <order>, id ASC
//	LIMIT <limit> OFFSET <offset>
//
// The id tiebreak is always appended so that paging is deterministic even
// when the sort field has duplicates or is missing. Documents missing the
// sort field sort last in both directions.
type Select struct {
	Filter  Predicate // nil = no filter
	OrderBy OrderBy
	Limit   int // 0 = no limit
	Offset  int
}

// OrderBy names the sort field and direction.
type OrderBy struct {
	Field Path
	Desc  bool
}

// Equals represents a field-equals-literal predicate.
//
// Semantics:
//
//	<field> = <value>
//
// Comparison is structural: strings compare to strings, numbers to numbers,
// objects and arrays element-wise. Value Null matches an explicit null, not
// an absent field.
//
// Example:
//
//	Equals{Field: Path{"action", "verb"}, Value: action.String("login")}
type Equals struct {
	Field Path
	Value action.Value
}

func (Equals) predicateNode() {}

// In represents a field-in-set predicate.
//
// Semantics:
//
//	<field> IN (<value1>, <value2>, ...)
//
// Values must be scalars. An empty Values list matches nothing.
type In struct {
	Field  Path
	Values []action.Value
}

func (In) predicateNode() {}

// Range represents a half-open numeric range.
//
// Semantics:
//
//	<field> >= <gte> AND <field> < <lt>
//
// A nil bound is unbounded. Non-numeric field values never match.
type Range struct {
	Field Path
	Gte   *float64
	Lt    *float64
}

func (Range) predicateNode() {}

// TimeRange represents an inclusive instant range over an RFC 3339 field.
//
// Semantics:
//
//	<from> <= <field> <= <to>
//
// Fields that do not parse as RFC 3339 never match.
type TimeRange struct {
	Field Path
	From  *time.Time
	To    *time.Time
}

func (TimeRange) predicateNode() {}

// Contains represents a free-text match.
//
// Semantics:
//
//	lower(<field1>) LIKE '%' || lower(<text>) || '%' OR lower(<field2>) ...
//
// Only string fields are searched.
type Contains struct {
	Fields []Path
	Text   string
}

func (Contains) predicateNode() {}

// Exists represents an any-element match over an array field.
//
// Semantics:
//
//	EXISTS (SELECT 1 FROM each(<field>) AS e WHERE <where relative to e>)
//
// A nil Where matches any element, i.e. the array is non-empty.
//
// Example (some agent is a user named Ada):
//
//	Exists{
//	  Field: Path{"agents"},
//	  Where: And{Predicates: []Predicate{
//	    Equals{Field: Path{"type"}, Value: action.String("user")},
//	    Equals{Field: Path{"name"}, Value: action.String("Ada")},
//	  }},
//	}
type Exists struct {
	Field Path
	Where Predicate
}

func (Exists) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates (any must be true).
// Empty Predicates means "always false".
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
