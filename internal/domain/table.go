package domain

import "strings"

// Table is an in-memory rectangular table: named columns and typed rows.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable creates an empty table with the given column names.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// ColumnIndex returns the index of the named column, matching
// case-insensitively on trimmed names, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, c := range t.Columns {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return i
		}
	}
	return -1
}

// AppendRow adds a row, padding with nulls or truncating to column width.
func (t *Table) AppendRow(row []Value) {
	r := make([]Value, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// IsEmpty reports whether the table has no rows or only null cells.
func (t *Table) IsEmpty() bool {
	for _, row := range t.Rows {
		for _, v := range row {
			if !v.IsNull() {
				return false
			}
		}
	}
	return true
}

// DropEmptyColumns returns a copy without columns whose every cell is null.
// A table with no rows keeps all columns.
func (t *Table) DropEmptyColumns() *Table {
	if len(t.Rows) == 0 {
		return t.clone()
	}
	keep := make([]int, 0, len(t.Columns))
	for ci := range t.Columns {
		for _, row := range t.Rows {
			if !row[ci].IsNull() {
				keep = append(keep, ci)
				break
			}
		}
	}
	out := &Table{Columns: make([]string, len(keep))}
	for i, ci := range keep {
		out.Columns[i] = t.Columns[ci]
	}
	out.Rows = make([][]Value, len(t.Rows))
	for ri, row := range t.Rows {
		nr := make([]Value, len(keep))
		for i, ci := range keep {
			nr[i] = row[ci]
		}
		out.Rows[ri] = nr
	}
	return out
}

// DropEmptyRows returns a copy without rows whose every cell is null.
func (t *Table) DropEmptyRows() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows {
		empty := true
		for _, v := range row {
			if !v.IsNull() {
				empty = false
				break
			}
		}
		if !empty {
			out.Rows = append(out.Rows, append([]Value(nil), row...))
		}
	}
	return out
}

// DropLastRow returns a copy without the final row. Tables with at most one
// row are returned unchanged (a lone row is data, not a totals line).
func (t *Table) DropLastRow() *Table {
	out := t.clone()
	if len(out.Rows) > 1 {
		out.Rows = out.Rows[:len(out.Rows)-1]
	}
	return out
}

func (t *Table) clone() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([][]Value, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]Value(nil), row...)
	}
	return out
}
