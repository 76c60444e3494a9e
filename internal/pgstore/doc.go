// Package pgstore provides the PostgreSQL backend for actions.
//
// The layout mirrors the SQLite backend: one row per action with the id,
// an indexed company_id, occurred_at as TIMESTAMPTZ, and the document as
// JSONB. Searches are compiled by querysql with the Postgres dialect.
//
// Open retries the initial ping so that a backend started alongside its
// database does not fail on the first refused connection.
package pgstore
