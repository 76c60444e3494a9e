// Package action defines the canonical Action record, the filter model used
// to search actions, and their structural validators.
//
// This package contains types and pure functions only. Every other internal
// package imports action; action imports nothing internal.
//
// Key design constraints:
//   - Open fields (meta, request, response body/headers, change before/after)
//     use the sealed Value type, never interface{}
//   - Objects serialize with sorted keys so documents are deterministic
//   - Validation is structural and reports every violation, not the first
//   - An empty string counts as absent for optional fields and as missing
//     for required ones
//   - Filter leaves accept one value or an array of values (OneOrMany)
package action
