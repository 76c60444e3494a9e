package querysql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/queryir"
)

// Dialect selects the SQL flavor a Compiler emits.
type Dialect string

const (
	// SQLite stores the document as JSON text and occurred_at as unix nanos.
	SQLite Dialect = "sqlite"
	// Postgres stores the document as JSONB and occurred_at as TIMESTAMPTZ.
	Postgres Dialect = "postgres"
)

// DefaultTable is the table both SQL backends create.
const DefaultTable = "actions"

// Compiler compiles QueryIR to parameterized SQL over the actions table:
//
//	id          primary key, authoritative for the "id" path
//	company_id  indexed copy of "companyId"
//	occurred_at parsed "timestamp", NULL when unparsable
//	doc         the action document without its id
//
// CRITICAL: ALL queries include ORDER BY with an id tiebreak.
// CRITICAL: All values are parameterized (never interpolated).
type Compiler struct {
	Dialect Dialect
	Table   string
}

// NewCompiler creates a Compiler for d over DefaultTable.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d, Table: DefaultTable}
}

// Columns returns the select list, in scan order: id, company_id,
// occurred_at, doc.
func (c *Compiler) Columns() string {
	if c.Dialect == Postgres {
		return "id, company_id, occurred_at, doc::text"
	}
	return "id, company_id, occurred_at, doc"
}

// Compile converts sel to parameterized SQL.
// Returns (sql, params, error). Queries outside the portable fragment are
// refused.
func (c *Compiler) Compile(sel queryir.Select) (string, []any, error) {
	switch c.Dialect {
	case SQLite, Postgres:
	default:
		return "", nil, fmt.Errorf("unsupported dialect %q", c.Dialect)
	}
	if err := queryir.Validate(sel).Err(); err != nil {
		return "", nil, err
	}

	b := &builder{dialect: c.Dialect}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", c.Columns(), c.table())

	if sel.Filter != nil {
		where, err := b.predicate(sel.Filter, root, false)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(b.orderBy(sel.OrderBy))

	if sel.Limit > 0 || (sel.Offset > 0 && c.Dialect == SQLite) {
		limit := sel.Limit
		if limit <= 0 {
			limit = -1
		}
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.arg(limit))
	}
	if sel.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.arg(sel.Offset))
	}

	return sb.String(), b.args, nil
}

func (c *Compiler) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// scope is the JSON value paths are resolved against: the row document, or
// the current element of an enclosing Exists.
type scope struct {
	base  string // SQL expression holding the JSON value
	alias string // element alias, empty for the row
}

var root = scope{base: "doc"}

func (s scope) element() bool { return s.alias != "" }

type builder struct {
	dialect Dialect
	args    []any
	aliases int
}

// arg records v and returns its placeholder.
func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

// column maps top-level paths that live in dedicated columns.
func column(s scope, p queryir.Path) (string, bool) {
	if s.element() || len(p) != 1 {
		return "", false
	}
	switch p[0] {
	case "id":
		return "id", true
	case "companyId":
		return "company_id", true
	}
	return "", false
}

// jsonPath renders p as a SQLite JSON path.
func jsonPath(p queryir.Path) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range p {
		sb.WriteString(`."`)
		sb.WriteString(seg)
		sb.WriteString(`"`)
	}
	return sb.String()
}

// extract renders the SQL value at p: typed scalars for SQLite, JSONB for
// Postgres.
func (b *builder) extract(s scope, p queryir.Path) string {
	if b.dialect == Postgres {
		if len(p) == 0 {
			return s.base
		}
		return fmt.Sprintf("%s #> %s::text[]", s.base, b.arg([]string(p)))
	}
	if len(p) == 0 && s.element() {
		return s.alias + ".value"
	}
	return fmt.Sprintf("json_extract(%s, %s)", s.base, b.arg(jsonPath(p)))
}

// text renders the value at p as SQL text.
func (b *builder) text(s scope, p queryir.Path) string {
	if b.dialect == Postgres {
		if len(p) == 0 {
			return s.base + " #>> '{}'"
		}
		return fmt.Sprintf("%s #>> %s::text[]", s.base, b.arg([]string(p)))
	}
	return b.extract(s, p)
}

// jsonType renders the SQLite JSON type name of the value at p.
func (b *builder) jsonType(s scope, p queryir.Path) string {
	if len(p) == 0 && s.element() {
		return s.alias + ".type"
	}
	return fmt.Sprintf("json_type(%s, %s)", s.base, b.arg(jsonPath(p)))
}

// predicate compiles p. nested is true when the result is joined with
// siblings and compound output needs parentheses.
func (b *builder) predicate(p queryir.Predicate, s scope, nested bool) (string, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil
	case queryir.Equals:
		return b.equals(s, pred.Field, pred.Value, nested)
	case queryir.In:
		return b.in(s, pred, nested)
	case queryir.Range:
		return b.numberRange(s, pred, nested), nil
	case queryir.TimeRange:
		return b.timeRange(pred, nested), nil
	case queryir.Contains:
		return b.contains(s, pred, nested), nil
	case queryir.Exists:
		return b.exists(s, pred)
	case queryir.And:
		return b.junction(s, pred.Predicates, " AND ", "1 = 1", nested)
	case queryir.Or:
		return b.junction(s, pred.Predicates, " OR ", "1 = 0", nested)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) junction(s scope, preds []queryir.Predicate, op, empty string, nested bool) (string, error) {
	switch len(preds) {
	case 0:
		return empty, nil
	case 1:
		return b.predicate(preds[0], s, nested)
	}
	parts := make([]string, 0, len(preds))
	for _, sub := range preds {
		sql, err := b.predicate(sub, s, true)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return group(strings.Join(parts, op), nested), nil
}

func group(sql string, nested bool) string {
	if nested {
		return "(" + sql + ")"
	}
	return sql
}

func (b *builder) equals(s scope, p queryir.Path, v action.Value, nested bool) (string, error) {
	if col, ok := column(s, p); ok {
		str, isString := v.(action.String)
		if !isString {
			return "1 = 0", nil
		}
		return fmt.Sprintf("%s = %s", col, b.arg(string(str))), nil
	}

	if b.dialect == Postgres {
		doc, err := action.MarshalValue(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s::jsonb", b.extract(s, p), b.arg(string(doc))), nil
	}

	switch val := v.(type) {
	case nil, action.Null:
		return fmt.Sprintf("%s = 'null'", b.jsonType(s, p)), nil
	case action.Bool:
		return fmt.Sprintf("%s = '%t'", b.jsonType(s, p), bool(val)), nil
	case action.String:
		return fmt.Sprintf("%s = %s", b.extract(s, p), b.arg(string(val))), nil
	case action.Number:
		sql := fmt.Sprintf("%s IN ('integer', 'real') AND %s = %s",
			b.jsonType(s, p), b.extract(s, p), b.arg(float64(val)))
		return group(sql, nested), nil
	case action.Array, action.Object:
		doc, err := action.MarshalValue(val)
		if err != nil {
			return "", err
		}
		kind := "object"
		if _, ok := val.(action.Array); ok {
			kind = "array"
		}
		sql := fmt.Sprintf("%s = '%s' AND %s = json(%s)",
			b.jsonType(s, p), kind, b.extract(s, p), b.arg(string(doc)))
		return group(sql, nested), nil
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}

func (b *builder) in(s scope, pred queryir.In, nested bool) (string, error) {
	strs := make([]string, 0, len(pred.Values))
	for _, v := range pred.Values {
		if str, ok := v.(action.String); ok {
			strs = append(strs, string(str))
		}
	}
	if len(strs) != len(pred.Values) {
		eqs := make([]queryir.Predicate, len(pred.Values))
		for i, v := range pred.Values {
			eqs[i] = queryir.Equals{Field: pred.Field, Value: v}
		}
		return b.junction(s, eqs, " OR ", "1 = 0", nested)
	}

	col, isColumn := column(s, pred.Field)
	if !isColumn {
		col = b.extract(s, pred.Field)
	}
	holders := make([]string, len(strs))
	for i, str := range strs {
		switch {
		case b.dialect == Postgres && !isColumn:
			doc, err := action.MarshalValue(action.String(str))
			if err != nil {
				return "", err
			}
			holders[i] = b.arg(string(doc)) + "::jsonb"
		default:
			holders[i] = b.arg(str)
		}
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(holders, ", ")), nil
}

func (b *builder) numberRange(s scope, pred queryir.Range, nested bool) string {
	if _, ok := column(s, pred.Field); ok {
		return "1 = 0"
	}

	var number func() string
	var parts []string
	if b.dialect == Postgres {
		number = func() string {
			return fmt.Sprintf("CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s)::double precision END",
				b.extract(s, pred.Field), b.text(s, pred.Field))
		}
	} else {
		parts = append(parts, fmt.Sprintf("%s IN ('integer', 'real')", b.jsonType(s, pred.Field)))
		number = func() string { return b.extract(s, pred.Field) }
	}
	if pred.Gte != nil {
		parts = append(parts, fmt.Sprintf("%s >= %s", number(), b.arg(*pred.Gte)))
	}
	if pred.Lt != nil {
		parts = append(parts, fmt.Sprintf("%s < %s", number(), b.arg(*pred.Lt)))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return group(strings.Join(parts, " AND "), nested)
}

func (b *builder) timeRange(pred queryir.TimeRange, nested bool) string {
	instant := func(t time.Time) any {
		if b.dialect == Postgres {
			return t.UTC()
		}
		return t.UnixNano()
	}
	var parts []string
	if pred.From != nil {
		parts = append(parts, "occurred_at >= "+b.arg(instant(*pred.From)))
	}
	if pred.To != nil {
		parts = append(parts, "occurred_at <= "+b.arg(instant(*pred.To)))
	}
	switch len(parts) {
	case 0:
		return "occurred_at IS NOT NULL"
	case 1:
		return parts[0]
	}
	return group(strings.Join(parts, " AND "), nested)
}

func (b *builder) contains(s scope, pred queryir.Contains, nested bool) string {
	needle := strings.ToLower(pred.Text)
	parts := make([]string, 0, len(pred.Fields))
	for _, f := range pred.Fields {
		haystack, isColumn := column(s, f)
		if !isColumn {
			haystack = fmt.Sprintf("coalesce(%s, '')", b.text(s, f))
		}
		if b.dialect == Postgres {
			parts = append(parts, fmt.Sprintf("strpos(lower(%s), %s) > 0", haystack, b.arg(needle)))
		} else {
			parts = append(parts, fmt.Sprintf("instr(lower(%s), %s) > 0", haystack, b.arg(needle)))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return group(strings.Join(parts, " OR "), nested)
}

func (b *builder) exists(s scope, pred queryir.Exists) (string, error) {
	b.aliases++
	alias := "e" + strconv.Itoa(b.aliases)
	elem := scope{base: alias + ".value", alias: alias}

	var from string
	if b.dialect == Postgres {
		from = fmt.Sprintf("jsonb_array_elements(%s) AS %s(value)", b.extract(s, pred.Field), elem.alias)
	} else {
		from = fmt.Sprintf("json_each(%s, %s) AS %s", s.base, b.arg(jsonPath(pred.Field)), elem.alias)
	}

	if pred.Where == nil {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s)", from), nil
	}
	where, err := b.predicate(pred.Where, elem, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", from, where), nil
}

func (b *builder) orderBy(o queryir.OrderBy) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	tiebreak := "id ASC"
	if b.dialect == Postgres {
		tiebreak = `id COLLATE "C" ASC`
	}

	var key string
	switch {
	case len(o.Field) == 1 && o.Field[0] == "id":
		if b.dialect == Postgres {
			return fmt.Sprintf(`id COLLATE "C" %s`, dir)
		}
		return "id " + dir
	case len(o.Field) == 1 && o.Field[0] == "companyId":
		key = "company_id"
	case len(o.Field) == 1 && o.Field[0] == "timestamp":
		key = "occurred_at"
	case b.dialect == Postgres:
		key = fmt.Sprintf("NULLIF(%s, 'null'::jsonb)", b.extract(root, o.Field))
	default:
		key = b.extract(root, o.Field)
	}
	return fmt.Sprintf("%s %s NULLS LAST, %s", key, dir, tiebreak)
}
