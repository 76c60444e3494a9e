// Package conformance runs YAML scenarios against any engine.Actions and
// records what every step returned.
//
// A scenario is a list of steps, each calling one engine operation with an
// optional expectation:
//
//	name: filters
//	description: Filters narrow results and default to newest first.
//	steps:
//	  - op: create_many
//	    actions: [...]
//	  - op: find_many
//	    filters: {companyId: acme, app: billing}
//	    expect:
//	      ids: [f3, f1]
//
// Expectations check the outcome of a single backend. The recorded Trace
// lets a test also require that every backend behaves exactly like the
// in-memory reference.
package conformance
