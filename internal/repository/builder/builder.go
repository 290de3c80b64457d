package builder

import (
	"fmt"
	"strings"
)

// SQLBuilder helps construct PostgreSQL queries dynamically.
// Conditions use "?" markers which Build rewrites to $1, $2, ... in order.
type SQLBuilder struct {
	table     string
	columns   []string
	values    []interface{}
	where     []condition
	orderBy   []string
	returning []string
	limit     int
	offset    int
	isInsert  bool
	isSelect  bool
}

type condition struct {
	sql  string
	args []interface{}
}

// NewSQLBuilder creates a new instance of SQLBuilder.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{}
}

// Select specifies the columns to retrieve.
func (b *SQLBuilder) Select(cols ...string) *SQLBuilder {
	b.isSelect = true
	b.columns = cols
	return b
}

// Insert specifies the table and columns for insertion.
func (b *SQLBuilder) Insert(table string, cols ...string) *SQLBuilder {
	b.isInsert = true
	b.table = table
	b.columns = cols
	return b
}

// From specifies the table to select from.
func (b *SQLBuilder) From(table string) *SQLBuilder {
	b.table = table
	return b
}

// Values specifies the values for insertion.
func (b *SQLBuilder) Values(vals ...interface{}) *SQLBuilder {
	b.values = vals
	return b
}

// Returning adds a RETURNING clause to an insert.
func (b *SQLBuilder) Returning(cols ...string) *SQLBuilder {
	b.returning = cols
	return b
}

// Where adds a condition; multiple conditions are combined with AND.
func (b *SQLBuilder) Where(cond string, args ...interface{}) *SQLBuilder {
	b.where = append(b.where, condition{sql: cond, args: args})
	return b
}

// WhereIf adds the condition only when ok is true.
func (b *SQLBuilder) WhereIf(ok bool, cond string, args ...interface{}) *SQLBuilder {
	if !ok {
		return b
	}
	return b.Where(cond, args...)
}

// OrderBy adds an ORDER BY clause.
func (b *SQLBuilder) OrderBy(order string) *SQLBuilder {
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit adds a LIMIT clause. Zero means no limit.
func (b *SQLBuilder) Limit(limit int) *SQLBuilder {
	b.limit = limit
	return b
}

// Offset adds an OFFSET clause. Zero means no offset.
func (b *SQLBuilder) Offset(offset int) *SQLBuilder {
	b.offset = offset
	return b
}

// BuildSafe is Build plus a check that every argument has a placeholder.
func (b *SQLBuilder) BuildSafe() (string, []interface{}, error) {
	query, args := b.Build()

	for i := 1; i <= len(args); i++ {
		if !strings.Contains(query, fmt.Sprintf("$%d", i)) {
			return "", nil, fmt.Errorf("placeholder $%d missing for %d arguments", i, len(args))
		}
	}
	if strings.Contains(query, fmt.Sprintf("$%d", len(args)+1)) {
		return "", nil, fmt.Errorf("placeholder count exceeds argument count (%d)", len(args))
	}

	return query, args, nil
}

// Build constructs the final SQL string and arguments.
func (b *SQLBuilder) Build() (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	if b.isInsert {
		sb.WriteString("INSERT INTO ")
		sb.WriteString(b.table)
		sb.WriteString(" (")
		sb.WriteString(strings.Join(b.columns, ", "))
		sb.WriteString(") VALUES (")
		placeholders := make([]string, len(b.values))
		for i := range b.values {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		sb.WriteString(strings.Join(placeholders, ", "))
		sb.WriteString(")")
		if len(b.returning) > 0 {
			sb.WriteString(" RETURNING ")
			sb.WriteString(strings.Join(b.returning, ", "))
		}
		return sb.String(), append(args, b.values...)
	}

	if b.isSelect {
		sb.WriteString("SELECT ")
		sb.WriteString(strings.Join(b.columns, ", "))
		sb.WriteString(" FROM ")
		sb.WriteString(b.table)
	}

	if len(b.where) > 0 {
		parts := make([]string, len(b.where))
		for i, c := range b.where {
			parts[i] = rebind(c.sql, len(args)+1)
			args = append(args, c.args...)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	if b.offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
	}

	return sb.String(), args
}

// rebind replaces each "?" in cond with $start, $start+1, ...
func rebind(cond string, start int) string {
	var out strings.Builder
	n := start
	for _, r := range cond {
		if r == '?' {
			out.WriteString(fmt.Sprintf("$%d", n))
			n++
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}
