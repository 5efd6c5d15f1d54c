package selector

import (
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// Table is an immutable labelled matrix of magnitudes: one row per scenario
// (or node), one column per indicator.
// Column-major storage: each column is a contiguous slice over the rows.
type Table struct {
	rows     []string
	cols     []string
	columns  [][]float64
	rowIndex map[string]int
	colIndex map[string]int
}

func newTable(rows, cols []string) *Table {
	t := &Table{
		rows:     slices.Clone(rows),
		cols:     slices.Clone(cols),
		columns:  make([][]float64, len(cols)),
		rowIndex: make(map[string]int, len(rows)),
		colIndex: make(map[string]int, len(cols)),
	}
	for i, r := range t.rows {
		t.rowIndex[r] = i
	}
	for j, c := range t.cols {
		t.colIndex[c] = j
		t.columns[j] = make([]float64, len(rows))
	}
	return t
}

// Rows returns the row keys in order.
func (t *Table) Rows() []string { return slices.Clone(t.rows) }

// Columns returns the column keys in order.
func (t *Table) Columns() []string { return slices.Clone(t.cols) }

// Shape returns the number of rows and columns.
func (t *Table) Shape() (int, int) { return len(t.rows), len(t.cols) }

// At returns the cell at row i, column j.
func (t *Table) At(i, j int) float64 { return t.columns[j][i] }

// Value returns the cell for the given keys.
func (t *Table) Value(row, col string) (float64, bool) {
	i, ok := t.rowIndex[row]
	if !ok {
		return 0, false
	}
	j, ok := t.colIndex[col]
	if !ok {
		return 0, false
	}
	return t.columns[j][i], true
}

// Column returns a copy of one column.
func (t *Table) Column(col string) ([]float64, bool) {
	j, ok := t.colIndex[col]
	if !ok {
		return nil, false
	}
	return slices.Clone(t.columns[j]), true
}

// Row returns a copy of one row.
func (t *Table) Row(row string) ([]float64, bool) {
	i, ok := t.rowIndex[row]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(t.cols))
	for j := range t.cols {
		out[j] = t.columns[j][i]
	}
	return out, true
}

func (t *Table) set(i, j int, v float64) { t.columns[j][i] = v }

// project copies the rows and columns whose indices are in rows and cols,
// in index order.
func (t *Table) project(rows, cols *roaring.Bitmap) *Table {
	rowIdx := toInts(rows)
	colIdx := toInts(cols)

	rowKeys := make([]string, len(rowIdx))
	for k, i := range rowIdx {
		rowKeys[k] = t.rows[i]
	}
	colKeys := make([]string, len(colIdx))
	for k, j := range colIdx {
		colKeys[k] = t.cols[j]
	}

	out := newTable(rowKeys, colKeys)
	for cj, j := range colIdx {
		for ri, i := range rowIdx {
			out.set(ri, cj, t.columns[j][i])
		}
	}
	return out
}

// allOf returns a bitmap holding 0..n-1.
func allOf(n int) *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(n))
	return bm
}

func toInts(bm *roaring.Bitmap) []int {
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
