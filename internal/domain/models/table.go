package models

// Table is a rectangular sheet: a header and rows of the same width.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Value
}

// ColumnIndex returns the position of name in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Records converts every row into a Record keyed by the header.
func (t *Table) Records() []*Record {
	out := make([]*Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := NewRecord()
		for i, col := range t.Columns {
			if i < len(row) {
				rec.Set(col, row[i])
			} else {
				rec.Set(col, Null())
			}
		}
		out = append(out, rec)
	}
	return out
}
