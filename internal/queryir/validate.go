package queryir

import (
	"fmt"
	"math"

	"github.com/roach88/actionstore/internal/action"
)

// ValidationResult contains portability analysis of a query.
//
// The portable fragment is the subset of QueryIR that every backend (SQLite,
// PostgreSQL, in-memory) evaluates identically. Compilers refuse queries
// outside it.
type ValidationResult struct {
	// IsPortable indicates if the query uses only portable fragment features.
	IsPortable bool

	// Warnings lists non-portable features used in the query.
	// Empty when IsPortable is true.
	Warnings []string
}

// Err returns the warnings as an error, or nil when portable.
func (r ValidationResult) Err() error {
	if r.IsPortable {
		return nil
	}
	return fmt.Errorf("query outside portable fragment: %v", r.Warnings)
}

// Validate checks if a query conforms to the portable fragment rules.
//
// Portable fragment rules:
//  1. Field paths are non-empty, except inside Exists where an empty path
//     addresses the array element itself
//  2. In lists at least one value, and only scalars
//  3. Range has at least one finite bound
//  4. TimeRange applies to the top-level timestamp field only
//  5. Contains names at least one field and non-empty text
//  6. OrderBy names a field
//
// Validate is a pure function with no side effects.
func Validate(sel Select) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	if len(sel.OrderBy.Field) == 0 {
		v.addWarning("OrderBy without field")
	}
	if sel.Limit < 0 || sel.Offset < 0 {
		v.addWarning("negative limit or offset")
	}
	v.validatePredicate(sel.Filter, 0)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validatePredicate recursively validates a predicate node. depth counts
// enclosing Exists nodes.
func (v *validator) validatePredicate(p Predicate, depth int) {
	if p == nil {
		return // nil predicates are valid (no filter)
	}

	switch pred := p.(type) {
	case Equals:
		v.validateField("Equals", pred.Field, depth)
		if pred.Value == nil {
			v.addWarning("Equals on '%s' without value", pred.Field)
		}
	case In:
		v.validateField("In", pred.Field, depth)
		if len(pred.Values) == 0 {
			v.addWarning("In on '%s' without values", pred.Field)
		}
		for _, val := range pred.Values {
			if !isScalar(val) {
				v.addWarning("In on '%s' with non-scalar value %T", pred.Field, val)
			}
		}
	case Range:
		v.validateField("Range", pred.Field, depth)
		if pred.Gte == nil && pred.Lt == nil {
			v.addWarning("Range on '%s' without bounds", pred.Field)
		}
		for _, b := range []*float64{pred.Gte, pred.Lt} {
			if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
				v.addWarning("Range on '%s' with non-finite bound", pred.Field)
			}
		}
	case TimeRange:
		if depth > 0 || len(pred.Field) != 1 || pred.Field[0] != "timestamp" {
			v.addWarning("TimeRange on '%s' - only the top-level timestamp is supported", pred.Field)
		}
	case Contains:
		if len(pred.Fields) == 0 || pred.Text == "" {
			v.addWarning("Contains without fields or text")
		}
		for _, f := range pred.Fields {
			v.validateField("Contains", f, depth)
		}
	case Exists:
		v.validateField("Exists", pred.Field, depth)
		v.validatePredicate(pred.Where, depth+1)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, depth)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, depth)
		}
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validateField(kind string, field Path, depth int) {
	if len(field) == 0 && (depth == 0 || kind == "Exists") {
		v.addWarning("%s with empty field path", kind)
	}
	for _, seg := range field {
		if seg == "" {
			v.addWarning("%s on '%s' with empty path segment", kind, field)
			return
		}
	}
}

func isScalar(v action.Value) bool {
	switch v.(type) {
	case action.String, action.Number, action.Bool:
		return true
	}
	return false
}
