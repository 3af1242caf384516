// Package dataset reads raw inputs into in-memory tables and image sets.
//
// A Table is an ordered set of named columns. A column starts life as raw
// strings from the source and becomes numeric once cleaning coerces it. Tables
// are handed from stage to stage by value: every method that changes shape or
// content returns a new Table and leaves the receiver untouched.
package dataset

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// String columns hold the raw source text.
	String Kind = iota
	// Numeric columns hold float64 values. NaN marks a missing value.
	Numeric
)

func (k Kind) String() string {
	if k == Numeric {
		return "float64"
	}
	return "string"
}

// Column is a named column. Exactly one of Values or Floats is populated,
// according to Kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []string
	Floats []float64
}

// Len returns the number of cells.
func (c Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Values)
}

// MissingCount counts missing cells: NaN for numeric columns, empty strings
// for string columns.
func (c Column) MissingCount() int {
	n := 0
	if c.Kind == Numeric {
		for _, v := range c.Floats {
			if math.IsNaN(v) {
				n++
			}
		}
		return n
	}
	for _, v := range c.Values {
		if v == "" {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (c Column) Clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Values != nil {
		out.Values = append([]string(nil), c.Values...)
	}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	return out
}

// NewStringColumn builds a string column.
func NewStringColumn(name string, values []string) Column {
	return Column{Name: name, Kind: String, Values: values}
}

// NewNumericColumn builds a numeric column.
func NewNumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Floats: values}
}

// Table is the raw or cleaned record table.
type Table struct {
	Source  string
	Columns []Column
}

// NewTable builds a table and checks that every column has the same length.
func NewTable(source string, cols ...Column) (*Table, error) {
	if len(cols) > 0 {
		n := cols[0].Len()
		for _, c := range cols[1:] {
			if c.Len() != n {
				return nil, errors.NewDimensionError("dataset.NewTable", n, c.Len(), 0)
			}
		}
	}
	return &Table{Source: source, Columns: cols}, nil
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) {
	if len(t.Columns) == 0 {
		return 0, 0
	}
	return t.Columns[0].Len(), len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i := t.Index(name)
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Clone()
	}
	return &Table{Source: t.Source, Columns: cols}
}

// WithColumn returns a copy with col replacing the same-named column, or
// appended when no such column exists.
func (t *Table) WithColumn(col Column) (*Table, error) {
	rows, ncols := t.Shape()
	if ncols > 0 && col.Len() != rows {
		return nil, errors.NewDimensionError("Table.WithColumn", rows, col.Len(), 0)
	}
	out := t.Clone()
	if i := out.Index(col.Name); i >= 0 {
		out.Columns[i] = col.Clone()
		return out, nil
	}
	out.Columns = append(out.Columns, col.Clone())
	return out, nil
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Table{Source: t.Source}
	for _, c := range t.Columns {
		if !drop[c.Name] {
			out.Columns = append(out.Columns, c.Clone())
		}
	}
	return out
}

// Rename returns a copy with every column name passed through fn.
func (t *Table) Rename(fn func(string) string) *Table {
	out := t.Clone()
	for i := range out.Columns {
		out.Columns[i].Name = fn(out.Columns[i].Name)
	}
	return out
}

// Summary is the per-column output of Describe.
type Summary struct {
	Name    string
	Kind    Kind
	Count   int // non-missing cells
	Missing int
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
}

// Describe summarises every column. Statistics are NaN for string columns
// and for numeric columns with no observed values.
func (t *Table) Describe() []Summary {
	out := make([]Summary, 0, len(t.Columns))
	for _, c := range t.Columns {
		s := Summary{Name: c.Name, Kind: c.Kind, Missing: c.MissingCount()}
		s.Count = c.Len() - s.Missing
		s.Mean, s.Std, s.Min, s.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		if c.Kind == Numeric {
			observed := Observed(c.Floats)
			if len(observed) > 0 {
				s.Mean, s.Std = stat.MeanStdDev(observed, nil)
				s.Min = floats.Min(observed)
				s.Max = floats.Max(observed)
			}
		}
		out = append(out, s)
	}
	return out
}

// Observed returns the non-NaN values of xs.
func Observed(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// DeriveDate returns a copy with a "YYYY-MM-DD" column built from year, month
// and day columns. Rows whose parts do not form a valid calendar date get an
// empty (missing) value. Two-digit years are read as 19xx, matching the
// buoy archive's convention.
func (t *Table) DeriveDate(yearCol, monthCol, dayCol, name string) (*Table, error) {
	parts := make([][]string, 3)
	for i, n := range []string{yearCol, monthCol, dayCol} {
		c, ok := t.Column(n)
		if !ok {
			return nil, errors.NewCleaningError(n, "column not found")
		}
		parts[i] = cellStrings(c)
	}

	rows, _ := t.Shape()
	dates := make([]string, rows)
	for r := 0; r < rows; r++ {
		y, errY := strconv.Atoi(parts[0][r])
		m, errM := strconv.Atoi(parts[1][r])
		d, errD := strconv.Atoi(parts[2][r])
		if errY != nil || errM != nil || errD != nil {
			continue
		}
		if y < 100 {
			y += 1900
		}
		ts := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		// time.Date normalises overflow (Feb 30 -> Mar 2); reject that.
		if ts.Year() != y || int(ts.Month()) != m || ts.Day() != d {
			continue
		}
		dates[r] = ts.Format(time.DateOnly)
	}
	return t.WithColumn(NewStringColumn(name, dates))
}

func cellStrings(c Column) []string {
	if c.Kind == String {
		return c.Values
	}
	out := make([]string, len(c.Floats))
	for i, v := range c.Floats {
		if !math.IsNaN(v) {
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}
