// Package queryir provides a backend-neutral query intermediate
// representation (IR) for action searches.
//
// QueryIR is the abstraction boundary between the filter model and backend
// query engines. Build translates FindActionFilters and FindActionOptions
// into a Select once; every backend then evaluates the same Select.
//
// ARCHITECTURE:
//
//	[FindActionFilters + FindActionOptions] → Build → [Select]
//	                                                 → querysql (SQLite, PostgreSQL)
//	                                                 → querymem (in-memory, Redis)
//
// PORTABLE FRAGMENT:
//
// The portable fragment is what every backend evaluates identically:
//   - Select(filter, order, limit, offset) with an implicit id tiebreak
//   - Predicates: Equals, In, Range, TimeRange, Contains, Exists, And, Or
//   - Field paths over the JSON document shape of an Action
//
// The portable fragment EXCLUDES:
//   - Nested array paths outside Exists (agents.0.type is not addressable)
//   - TimeRange on fields other than timestamp
//   - Aggregations and projections (whole actions are always returned)
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package can implement it, so backend compilers can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	    // Handle equality
//	case Exists:
//	    // Recurse into elements
//	default:
//	    // Impossible - compiler knows all Predicate types
//	}
package queryir
