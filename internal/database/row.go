package database

// Page is one batch of rows read from a table: the ordered column names of the
// result set and the row tuples in the order the server returned them.
type Page struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}

// ScanPage reads all rows from the result set into a Page.
//
// The returned page is always non-nil (no rows on an empty result).
// ScanPage always closes the Rows; callers do not need to call Close().
func ScanPage(rows Rows) (*Page, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errQuery("failed to read column names", err)
	}

	page := &Page{Columns: columns, Rows: make([][]any, 0)}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, errQuery("failed to scan row", err)
		}
		page.Rows = append(page.Rows, vals)
	}

	if err := rows.Err(); err != nil {
		return nil, errQuery("error during row iteration", err)
	}

	return page, nil
}

// ScanStrings reads a single-column text result set.
// ScanStrings always closes the Rows.
func ScanStrings(rows Rows) ([]string, error) {
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errQuery("failed to scan text column", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errQuery("error during row iteration", err)
	}
	return list, nil
}
