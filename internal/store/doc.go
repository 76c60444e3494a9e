// Package store provides the SQLite backend for actions.
//
// Each action is one row in the actions table:
//   - id: primary key, assigned as a uuid when the action has none
//   - company_id: indexed copy of companyId
//   - occurred_at: the timestamp parsed to unix nanoseconds
//   - doc: the remaining action document as JSON text
//
// # Critical Patterns
//
// Idempotent Writes
//   - INSERT ... ON CONFLICT(id) DO NOTHING
//   - A duplicate id returns the record already stored
//
// Deterministic Query Results
//   - Searches are compiled from QueryIR by querysql
//   - All queries end with an id tiebreak so paging is stable
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
