package database

import (
	"fmt"
	"strings"
)

// SelectBuilder constructs a parameterized SELECT over one schema-qualified
// table. Paging values are never interpolated into the SQL string; they are
// always passed as args.
//
// Usage:
//
//	sql, args, err := Select("public", "users").
//	    Limit(500).
//	    Offset(1000).
//	    Build()
//
// No ORDER BY is emitted: pages follow the storage's default row order.
type SelectBuilder struct {
	schema  string
	table   string
	columns []string
	limit   *int
	offset  *int
}

// Select starts a new SelectBuilder for schema.table.
func Select(schema, table string) *SelectBuilder {
	return &SelectBuilder{schema: schema, table: table}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, errInvalidInput("select: empty table name")
	}
	if b.limit != nil && *b.limit < 0 {
		return "", nil, errInvalidInput(fmt.Sprintf("select: negative limit %d", *b.limit))
	}
	if b.offset != nil && *b.offset < 0 {
		return "", nil, errInvalidInput(fmt.Sprintf("select: negative offset %d", *b.offset))
	}

	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = QuoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	if b.schema != "" {
		sb.WriteString(QuoteIdent(b.schema))
		sb.WriteString(".")
	}
	sb.WriteString(QuoteIdent(b.table))

	var args []any
	argIdx := 1

	if b.limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", argIdx))
		args = append(args, *b.limit)
		argIdx++
	}

	if b.offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", argIdx))
		args = append(args, *b.offset)
	}

	return sb.String(), args, nil
}

// QuoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// This safely handles reserved words and mixed-case names.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
