// Package engine implements the storage-agnostic action engine.
//
// A backend supplies six primitives over its own record type R (the
// Storable interface). Engine[R] builds the canonical operations on top of
// them and owns everything that must behave the same on every backend.
//
// ARCHITECTURE:
//
//	caller → Engine[R].CreateAction / CreateManyActions / FindActionByID / FindManyActions
//	       → action validation (no I/O)
//	       → Storable[R].Serialize → Create / CreateMany / FindByID / FindMany
//	       → Storable[R].Deserialize
//	       → canonical action.Action
//
// CRITICAL PATTERNS:
//
// Validation first: every write is validated before the backend is called.
// A batch with a single invalid element fails as a whole with zero backend
// calls, and the error names each element as "[i].field".
//
// Order preservation: per-item Serialize/Deserialize in batches runs on a
// bounded errgroup, but results are written by index so the output order
// always matches the input order.
//
// Error propagation: backend errors are returned unchanged. The engine does
// not retry, recover or suppress partial failures; callers own that policy.
// Use IsNotFound and IsValidation to classify errors.
package engine
