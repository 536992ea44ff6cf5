// Package dataset holds the in-memory table model and the file loaders that
// produce it.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Table is an ordered collection of named columns stored row-major as raw
// cell text. Every row has exactly len(Columns) cells.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ErrNoColumns is returned for a table without any columns.
var ErrNoColumns = errors.New("table has no columns")

// New builds a table from a header and rows. Short rows are padded with empty
// cells and long rows are cut to the header width. Blank header cells become
// "Unnamed: i" and duplicates get a ".n" suffix.
func New(name string, header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrNoColumns
	}
	cols := normalizeHeader(header)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(cols))
		copy(row, r)
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		out = append(out, row)
	}
	return &Table{Name: name, Columns: cols, Rows: out}, nil
}

func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[h]; n > 0 {
			base := h
			for ; seen[h] > 0; n++ {
				h = base + "." + strconv.Itoa(n)
			}
			seen[base] = n
		}
		seen[h]++
		cols[i] = h
	}
	return cols
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the cells of column i.
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Lookup returns the cells of the named column.
func (t *Table) Lookup(name string) ([]string, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return t.Column(i), true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	return &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    rows,
	}
}

// Head returns a table with at most the first n rows. Rows are shared.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: t.Rows[:n]}
}

// MissingCount returns the number of missing cells in column i.
func (t *Table) MissingCount(i int) int {
	n := 0
	for _, row := range t.Rows {
		if IsMissing(row[i]) {
			n++
		}
	}
	return n
}

// Floats returns the parsed values of column i along with their row indexes.
// Missing and unparseable cells are skipped.
func (t *Table) Floats(i int) (vals []float64, rows []int) {
	for r, row := range t.Rows {
		if IsMissing(row[i]) {
			continue
		}
		if f, ok := ParseFloat(row[i]); ok {
			vals = append(vals, f)
			rows = append(rows, r)
		}
	}
	return vals, rows
}

// Present returns the non-missing cells of column i.
func (t *Table) Present(i int) []string {
	var out []string
	for _, row := range t.Rows {
		if !IsMissing(row[i]) {
			out = append(out, row[i])
		}
	}
	return out
}
