// Package table provides the small numeric column frame that every stage of the
// regression pipeline shares: measured tables cut out of workbooks, pivoted
// simulator output, and the joined error breakdowns.
//
// A Frame is column-major. Every row carries an integer label that survives
// filtering, so positional alignment between two frames can follow the row
// labels of the source workbook instead of the current row position.
// Column names may repeat; lookups by name return the first match.
package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError lists every requested column that a frame does not have.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column(s): %s", strings.Join(quoteAll(e.Columns), ", "))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

// Frame is an ordered set of float64 columns sharing one row index.
type Frame struct {
	Index   []int
	Columns []string
	Data    [][]float64
}

// New creates an empty frame with the given row labels.
func New(index []int) *Frame {
	idx := make([]int, len(index))
	copy(idx, index)
	return &Frame{Index: idx}
}

// Range returns the labels 0..n-1.
func Range(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Index)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Empty reports whether the frame has neither rows nor columns.
func (f *Frame) Empty() bool {
	return f.Len() == 0 && f.Width() == 0
}

// ColIndex returns the position of the first column with the given name, or -1.
func (f *Frame) ColIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	return f.ColIndex(name) >= 0
}

// Col returns the values of the first column with the given name.
func (f *Frame) Col(name string) ([]float64, bool) {
	i := f.ColIndex(name)
	if i < 0 {
		return nil, false
	}
	return f.Data[i], true
}

// AddColumn appends a column. values must have Len() entries.
func (f *Frame) AddColumn(name string, values []float64) {
	if len(values) != f.Len() {
		panic(fmt.Sprintf("table: column %q has %d values, frame has %d rows", name, len(values), f.Len()))
	}
	f.Columns = append(f.Columns, name)
	f.Data = append(f.Data, values)
}

// SetColumn replaces the first column with the given name, or appends it.
func (f *Frame) SetColumn(name string, values []float64) {
	if i := f.ColIndex(name); i >= 0 {
		if len(values) != f.Len() {
			panic(fmt.Sprintf("table: column %q has %d values, frame has %d rows", name, len(values), f.Len()))
		}
		f.Data[i] = values
		return
	}
	f.AddColumn(name, values)
}

// Const sets a column where every row holds v.
func (f *Frame) Const(name string, v float64) {
	vals := make([]float64, f.Len())
	for i := range vals {
		vals[i] = v
	}
	f.SetColumn(name, vals)
}

// Missing returns the names that are not columns of f.
func (f *Frame) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Select copies the named columns into a new frame, in the order given.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if missing := f.Missing(names...); len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}
	out := New(f.Index)
	for _, n := range names {
		src, _ := f.Col(n)
		vals := make([]float64, len(src))
		copy(vals, src)
		out.Columns = append(out.Columns, n)
		out.Data = append(out.Data, vals)
	}
	return out, nil
}

// Rename changes column names in place. Names not present are ignored.
func (f *Frame) Rename(mapping map[string]string) {
	for i, c := range f.Columns {
		if to, ok := mapping[c]; ok {
			f.Columns[i] = to
		}
	}
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []float64 {
	row := make([]float64, len(f.Columns))
	for c := range f.Columns {
		row[c] = f.Data[c][i]
	}
	return row
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New(f.Index)
	out.Columns = append([]string(nil), f.Columns...)
	out.Data = make([][]float64, len(f.Data))
	for i, col := range f.Data {
		out.Data[i] = append([]float64(nil), col...)
	}
	return out
}

// Take returns the rows at the given positions, in that order.
func (f *Frame) Take(rows []int) *Frame {
	idx := make([]int, len(rows))
	for i, r := range rows {
		idx[i] = f.Index[r]
	}
	out := New(idx)
	out.Columns = append([]string(nil), f.Columns...)
	out.Data = make([][]float64, len(f.Data))
	for c, col := range f.Data {
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = col[r]
		}
		out.Data[c] = vals
	}
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	if n < 0 {
		n = 0
	}
	return f.Take(Range(n))
}

// DropNA removes every row that has a NaN in any column.
func (f *Frame) DropNA() *Frame {
	keep := make([]int, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		ok := true
		for _, col := range f.Data {
			if math.IsNaN(col[r]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, r)
		}
	}
	return f.Take(keep)
}

// DropDuplicates removes rows equal to an earlier row across all columns.
// NaN compares equal to NaN.
func (f *Frame) DropDuplicates() *Frame {
	seen := make(map[string]struct{}, f.Len())
	keep := make([]int, 0, f.Len())
	var sb strings.Builder
	for r := 0; r < f.Len(); r++ {
		sb.Reset()
		for _, col := range f.Data {
			v := col[r]
			if math.IsNaN(v) {
				sb.WriteString("NaN;")
				continue
			}
			fmt.Fprintf(&sb, "%x;", math.Float64bits(v+0))
		}
		key := sb.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, r)
	}
	return f.Take(keep)
}

// Reverse returns the rows in reverse order, labels included.
func (f *Frame) Reverse() *Frame {
	rows := make([]int, f.Len())
	for i := range rows {
		rows[i] = f.Len() - 1 - i
	}
	return f.Take(rows)
}

// ResetIndex relabels rows 0..n-1.
func (f *Frame) ResetIndex() {
	f.Index = Range(f.Len())
}

// FillNaN replaces every NaN with v.
func (f *Frame) FillNaN(v float64) {
	for _, col := range f.Data {
		for i, x := range col {
			if math.IsNaN(x) {
				col[i] = v
			}
		}
	}
}

// ConcatColumns places frames side by side, aligning rows by label. The
// result holds the union of all labels in ascending order; cells a frame has
// no row for are NaN.
func ConcatColumns(frames ...*Frame) *Frame {
	labels := make(map[int]struct{})
	for _, fr := range frames {
		for _, l := range fr.Index {
			labels[l] = struct{}{}
		}
	}
	index := make([]int, 0, len(labels))
	for l := range labels {
		index = append(index, l)
	}
	sort.Ints(index)
	pos := make(map[int]int, len(index))
	for i, l := range index {
		pos[l] = i
	}

	out := New(index)
	for _, fr := range frames {
		for c, name := range fr.Columns {
			vals := nanSlice(len(index))
			for r, l := range fr.Index {
				vals[pos[l]] = fr.Data[c][r]
			}
			out.Columns = append(out.Columns, name)
			out.Data = append(out.Data, vals)
		}
	}
	return out
}

// ConcatRows stacks frames vertically. Columns are the ordered union of names;
// cells a frame lacks are NaN. Labels are kept as they are.
func ConcatRows(frames ...*Frame) *Frame {
	var columns []string
	seen := make(map[string]bool)
	total := 0
	for _, fr := range frames {
		total += fr.Len()
		for _, c := range fr.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}
	out := &Frame{Index: make([]int, 0, total)}
	for range columns {
		out.Data = append(out.Data, make([]float64, 0, total))
	}
	out.Columns = columns
	for _, fr := range frames {
		out.Index = append(out.Index, fr.Index...)
		for c, name := range columns {
			if src, ok := fr.Col(name); ok {
				out.Data[c] = append(out.Data[c], src...)
				continue
			}
			out.Data[c] = append(out.Data[c], nanSlice(fr.Len())...)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 { return nanSlice(n) }
