package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
	"github.com/roach88/actionstore/internal/queryir"
)

// Row is the persisted shape of an action in the actions table.
type Row struct {
	ID         string
	CompanyID  string
	OccurredAt pgtype.Timestamptz
	Doc        string // JSON document without id
}

var (
	_ engine.Storable[Row] = (*Store)(nil)
	_ engine.Named         = (*Store)(nil)
)

// Serialize converts an action to a Row. An empty id stays empty until
// Create assigns one.
func (s *Store) Serialize(_ context.Context, a action.Action) (Row, error) {
	id, doc, err := action.EncodeDocument(a)
	if err != nil {
		return Row{}, fmt.Errorf("serialize: %w", err)
	}
	row := Row{ID: id, CompanyID: a.CompanyID, Doc: string(doc)}
	if t, err := action.ParseTimestamp(a.Timestamp); err == nil {
		row.OccurredAt = pgtype.Timestamptz{Time: t.UTC(), Valid: true}
	}
	return row, nil
}

// Deserialize converts a Row back to an action.
func (s *Store) Deserialize(_ context.Context, row Row) (action.Action, error) {
	a, err := action.DecodeDocument(row.ID, []byte(row.Doc))
	if err != nil {
		return action.Action{}, fmt.Errorf("deserialize %q: %w", row.ID, err)
	}
	return a, nil
}

// Create inserts row, assigning an id when it has none. A duplicate id
// returns the record already stored under it.
func (s *Store) Create(ctx context.Context, row Row) (Row, error) {
	if row.ID == "" {
		row.ID = s.ids.Generate()
	}
	if err := insertRow(ctx, s.pool, row); err != nil {
		return Row{}, fmt.Errorf("create: %w", err)
	}
	stored, err := findRow(ctx, s.pool, s.compiler.Columns(), row.ID)
	if err != nil {
		return Row{}, fmt.Errorf("create: %w", err)
	}
	s.logger.Trace("inserted row", "id", stored.ID)
	return stored, nil
}

// CreateMany inserts rows in one transaction and returns them in input
// order.
func (s *Store) CreateMany(ctx context.Context, rows []Row) ([]Row, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("create many: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]Row, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			row.ID = s.ids.Generate()
		}
		if err := insertRow(ctx, tx, row); err != nil {
			return nil, fmt.Errorf("create many: row %d: %w", i, err)
		}
		stored, err := findRow(ctx, tx, s.compiler.Columns(), row.ID)
		if err != nil {
			return nil, fmt.Errorf("create many: row %d: %w", i, err)
		}
		out[i] = stored
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create many: commit: %w", err)
	}
	s.logger.Trace("inserted rows", "count", len(out))
	return out, nil
}

// FindByID returns the row stored under id, or an error wrapping
// engine.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (Row, error) {
	row, err := findRow(ctx, s.pool, s.compiler.Columns(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, engine.NotFound(id)
	}
	if err != nil {
		return Row{}, fmt.Errorf("find by id: %w", err)
	}
	return row, nil
}

// FindMany returns the rows matching filters, ordered and paged by opts.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FindMany(ctx context.Context, opts *action.FindActionOptions, filters *action.FindActionFilters) ([]Row, error) {
	query, params, err := s.compiler.Compile(queryir.Build(opts, filters))
	if err != nil {
		return nil, fmt.Errorf("find many: %w", err)
	}
	s.logger.Trace("find many", "sql", query)

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("find many: query: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("find many: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find many: iterate: %w", err)
	}
	return out, nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRow(ctx context.Context, db querier, row Row) error {
	_, err := db.Exec(ctx, `
		INSERT INTO actions (id, company_id, occurred_at, doc)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO NOTHING
	`, row.ID, row.CompanyID, row.OccurredAt, row.Doc)
	return err
}

func findRow(ctx context.Context, db querier, columns, id string) (Row, error) {
	return scanRow(db.QueryRow(ctx,
		"SELECT "+columns+" FROM actions WHERE id = $1", id))
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (Row, error) {
	var row Row
	if err := sc.Scan(&row.ID, &row.CompanyID, &row.OccurredAt, &row.Doc); err != nil {
		return Row{}, err
	}
	return row, nil
}
