package duckdb

import (
	"fmt"
	"strings"
)

// Builder constructs SELECT queries with a fluent API.
type Builder struct {
	table   string
	columns []string
	where   []whereClause
	orderBy []orderClause
}

type whereClause struct {
	expr string
	args []interface{}
}

type orderClause struct {
	column string
	desc   bool
}

// NewQueryBuilder creates a new query builder for the specified table.
func NewQueryBuilder(table string) *Builder {
	return &Builder{table: table}
}

// Select specifies the columns to retrieve.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds a custom WHERE clause with optional arguments.
// Multiple Where() calls are combined with AND.
func (b *Builder) Where(expr string, args ...interface{}) *Builder {
	b.where = append(b.where, whereClause{expr: expr, args: args})
	return b
}

// Eq adds an equality filter.
// If value is empty string, the filter is skipped (wildcard behavior).
func (b *Builder) Eq(column string, value interface{}) *Builder {
	if str, ok := value.(string); ok && str == "" {
		return b
	}
	return b.Where(fmt.Sprintf("%s = ?", column), value)
}

// OrderBy adds ORDER BY clauses. Use "-" prefix for DESC order.
//
//	OrderBy("signature")          // ASC
//	OrderBy("-records")           // DESC
func (b *Builder) OrderBy(columns ...string) *Builder {
	for _, col := range columns {
		desc := strings.HasPrefix(col, "-")
		b.orderBy = append(b.orderBy, orderClause{column: strings.TrimPrefix(col, "-"), desc: desc})
	}
	return b
}

// Build constructs the SQL query and returns the query string and arguments.
func (b *Builder) Build() (string, []interface{}, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}

	var query strings.Builder
	args := make([]interface{}, 0)

	query.WriteString("SELECT ")
	if len(b.columns) == 0 {
		query.WriteString("*")
	} else {
		query.WriteString(strings.Join(b.columns, ", "))
	}
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	if len(b.where) > 0 {
		exprs := make([]string, len(b.where))
		for i, w := range b.where {
			exprs[i] = w.expr
			args = append(args, w.args...)
		}
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(exprs, " AND "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			parts[i] = o.column
			if o.desc {
				parts[i] += " DESC"
			}
		}
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(parts, ", "))
	}

	return query.String(), args, nil
}

// MustBuild builds the query and panics on error.
func (b *Builder) MustBuild() (string, []interface{}) {
	q, args, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q, args
}

// UpsertBuilder constructs multi-row INSERT ... ON CONFLICT statements.
type UpsertBuilder struct {
	table    string
	columns  []string
	rows     [][]interface{}
	conflict []string
	set      []string
}

// NewUpsertBuilder creates an upsert builder for the specified table.
func NewUpsertBuilder(table string, columns ...string) *UpsertBuilder {
	return &UpsertBuilder{table: table, columns: columns}
}

// Values adds one row. The number of values must match the columns.
func (u *UpsertBuilder) Values(values ...interface{}) *UpsertBuilder {
	u.rows = append(u.rows, values)
	return u
}

// OnConflict sets the conflict target columns.
func (u *UpsertBuilder) OnConflict(columns ...string) *UpsertBuilder {
	u.conflict = append(u.conflict, columns...)
	return u
}

// Set adds an assignment applied when a row conflicts, e.g.
// "records = stack_records.records || EXCLUDED.records".
// Without assignments conflicting rows are ignored.
func (u *UpsertBuilder) Set(assignments ...string) *UpsertBuilder {
	u.set = append(u.set, assignments...)
	return u
}

// Len returns the number of rows added.
func (u *UpsertBuilder) Len() int {
	return len(u.rows)
}

// Build constructs the statement and returns it with its flattened arguments.
func (u *UpsertBuilder) Build() (string, []interface{}, error) {
	if u.table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}
	if len(u.columns) == 0 {
		return "", nil, fmt.Errorf("at least one column is required")
	}
	if len(u.rows) == 0 {
		return "", nil, fmt.Errorf("at least one row is required")
	}

	row := "(" + placeholders(len(u.columns)) + ")"
	tuples := make([]string, len(u.rows))
	args := make([]interface{}, 0, len(u.rows)*len(u.columns))
	for i, values := range u.rows {
		if len(values) != len(u.columns) {
			return "", nil, fmt.Errorf("row %d has %d values, expected %d", i, len(values), len(u.columns))
		}
		tuples[i] = row
		args = append(args, values...)
	}

	var query strings.Builder
	fmt.Fprintf(&query, "INSERT INTO %s (%s) VALUES %s",
		u.table, strings.Join(u.columns, ", "), strings.Join(tuples, ", "))

	if len(u.conflict) > 0 {
		fmt.Fprintf(&query, " ON CONFLICT (%s)", strings.Join(u.conflict, ", "))
		if len(u.set) > 0 {
			query.WriteString(" DO UPDATE SET ")
			query.WriteString(strings.Join(u.set, ", "))
		} else {
			query.WriteString(" DO NOTHING")
		}
	}

	return query.String(), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
