// Package table holds the in-memory tabular data uploaded by a user and the
// parsers that build it from delimited text and spreadsheets.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column, mirroring the int64/float64/object split
// dataframe libraries use.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
)

var (
	ErrEmptyTable    = errors.New("table has no header or no data rows")
	ErrMalformed     = errors.New("malformed table")
	ErrColumnMissing = errors.New("column not found")
)

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Numeric reports whether the column holds int or float values.
func (c Column) Numeric() bool {
	return c.Kind == KindInt || c.Kind == KindFloat
}

// Table is an ordered set of columns over string cells. Cells are kept as text so
// the original representation survives; typed access goes through Float and Value.
type Table struct {
	Columns []Column
	Rows    [][]string
}

// New validates the header, pads short rows, and infers column kinds.
func New(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyTable
	}
	seen := make(map[string]struct{}, len(header))
	cols := make([]Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty header in column %d", ErrMalformed, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformed, name)
		}
		seen[name] = struct{}{}
		cols[i] = Column{Name: name}
	}

	out := make([][]string, 0, len(rows))
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformed, i+1, len(row), len(header))
		}
		padded := make([]string, len(header))
		copy(padded, row)
		out = append(out, padded)
	}
	if len(out) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{Columns: cols, Rows: out}
	for i := range t.Columns {
		t.Columns[i].Kind = t.inferKind(i)
	}
	return t, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var missingMarkers = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {},
}

func isMissing(cell string) bool {
	_, ok := missingMarkers[strings.TrimSpace(cell)]
	return ok
}

func (t *Table) inferKind(col int) Kind {
	kind := KindInt
	values := 0
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[col])
		if isMissing(cell) {
			// missing values force a float column, as NaN has no int form
			if kind == KindInt {
				kind = KindFloat
			}
			continue
		}
		values++
		if kind == KindInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			kind = KindFloat
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return KindString
		}
	}
	if values == 0 {
		return KindString
	}
	return kind
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

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

// NumericColumns returns the positions of numeric columns in order.
func (t *Table) NumericColumns() []int {
	var idx []int
	for i, c := range t.Columns {
		if c.Numeric() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Float returns the numeric value of a cell. ok is false for missing or non-numeric cells.
func (t *Table) Float(row, col int) (float64, bool) {
	cell := t.Rows[row][col]
	if isMissing(cell) {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// FloatColumn returns a column as floats with NaN for missing cells.
func (t *Table) FloatColumn(col int) []float64 {
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		out[i], _ = t.Float(i, col)
	}
	return out
}

// Value returns a JSON-friendly typed cell: int64, float64, string or nil.
func (t *Table) Value(row, col int) any {
	cell := t.Rows[row][col]
	switch t.Columns[col].Kind {
	case KindInt:
		if isMissing(cell) {
			return nil
		}
		v, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
		if err != nil {
			return nil
		}
		return v
	case KindFloat:
		v, ok := t.Float(row, col)
		if !ok || math.IsInf(v, 0) {
			return nil
		}
		return v
	default:
		return cell
	}
}

// Head returns a table with at most n leading rows. Rows are shared with t.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// WithColumn returns a copy of t with one column appended. The new column's kind is inferred.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != len(t.Rows) {
		return nil, fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrMalformed, name, len(values), len(t.Rows))
	}
	if t.Index(name) >= 0 {
		return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformed, name)
	}
	cols := make([]Column, len(t.Columns), len(t.Columns)+1)
	copy(cols, t.Columns)
	cols = append(cols, Column{Name: name})
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]string, len(row), len(row)+1)
		copy(r, row)
		rows[i] = append(r, values[i])
	}
	out := &Table{Columns: cols, Rows: rows}
	out.Columns[len(cols)-1].Kind = out.inferKind(len(cols) - 1)
	return out, nil
}

// MarshalJSON renders the table as {"columns": [...], "rows": [[typed values]]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]any, len(t.Rows))
	for i := range t.Rows {
		row := make([]any, len(t.Columns))
		for j := range t.Columns {
			row[j] = t.Value(i, j)
		}
		rows[i] = row
	}
	return json.Marshal(struct {
		Columns []Column `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{Columns: t.Columns, Rows: rows})
}
