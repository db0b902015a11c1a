package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/sqlforge/internal/literal"
)

// PageSize is the number of rows fetched per data page.
const PageSize = 500

// data exports the rows of every picked table, one session per table. Any
// session or page failure is fatal.
func (e *emitter) data(ctx context.Context) (section, error) {
	sec := section{title: "TABLE DATA"}
	for _, t := range e.plan.tables {
		results, err := e.tableData(ctx, t)
		if err != nil {
			return sec, err
		}
		sec.results = append(sec.results, results...)
	}
	return sec, nil
}

func (e *emitter) tableData(ctx context.Context, t Selection) ([]Result, error) {
	key := t.Key()

	sess, err := e.in.OpenSession(ctx, t.Schema)
	if err != nil {
		return nil, fmt.Errorf("table data %s: %w", key, err)
	}
	defer sess.Close()

	var (
		results []Result
		columns []string
		total   int
	)
	for offset := 0; ; offset += PageSize {
		page, err := sess.FetchRows(ctx, t.Name, offset, PageSize)
		if err != nil {
			return nil, fmt.Errorf("table data %s: %w", key, err)
		}
		n := page.Len()
		if n == 0 {
			break
		}
		if columns == nil {
			columns = page.Columns
		}

		r := Result{Body: insertStatement(key, columns, page.Rows)}
		if total == 0 {
			r.Comment = "Data for " + key
		}
		results = append(results, r)
		total += n

		if n < PageSize {
			break
		}
	}

	if total == 0 {
		return []Result{{Comment: "No data found for " + key}}, nil
	}
	e.log.With().Str("table", key).Int("rows", total).Logger().Debug("exported table data")
	return results, nil
}

// insertStatement renders one multi-row INSERT. Rows are encoded positionally
// against columns.
func insertStatement(table string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES\n", table, strings.Join(columns, ", "))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(literal.Row(row))
	}
	b.WriteString(";")
	return b.String()
}
