// Package table is the pipeline's output: named columns of equal length, in caller order.
package table

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var (
	ErrNoColumns            = errors.New("table has no columns")
	ErrEmptyColumnName      = errors.New("empty column name")
	ErrDuplicateColumn      = errors.New("duplicate column name")
	ErrColumnLengthMismatch = errors.New("column length mismatch")
	ErrRowOutOfRange        = errors.New("row index out of range")
	ErrUnknownColumn        = errors.New("unknown column")
)

// ColumnLengthMismatchError reports the first column whose length differs from the
// first column's.
type ColumnLengthMismatchError struct {
	Column string
	Want   int
	Got    int
}

func (e *ColumnLengthMismatchError) Error() string {
	return fmt.Sprintf("column %q has %d values, want %d", e.Column, e.Got, e.Want)
}

func (e *ColumnLengthMismatchError) Is(target error) bool {
	return target == ErrColumnLengthMismatch
}

// RaggedRowError reports a row whose cell count differs from the column count.
type RaggedRowError struct {
	Row  int
	Want int
	Got  int
}

func (e *RaggedRowError) Error() string {
	return fmt.Sprintf("row %d has %d cells, want %d", e.Row, e.Got, e.Want)
}

func (e *RaggedRowError) Is(target error) bool {
	return target == ErrColumnLengthMismatch
}

// Column is one named vector.
type Column struct {
	Name   string
	Values []string
}

// Table is immutable; operations that trim or reshape return a new Table.
type Table struct {
	names []string
	cols  [][]string
	index map[string]int
}

// Assemble combines columns aligned by position. All columns must have the same length;
// nothing is padded or truncated.
func Assemble(cols ...Column) (*Table, error) {
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	t := &Table{
		names: make([]string, 0, len(cols)),
		cols:  make([][]string, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	want := len(cols[0].Values)
	for _, c := range cols {
		if c.Name == "" {
			return nil, ErrEmptyColumnName
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		if len(c.Values) != want {
			return nil, &ColumnLengthMismatchError{Column: c.Name, Want: want, Got: len(c.Values)}
		}
		t.index[c.Name] = len(t.names)
		t.names = append(t.names, c.Name)
		t.cols = append(t.cols, append([]string(nil), c.Values...))
	}
	return t, nil
}

// Empty returns a table with no columns and no rows, the shape of a query that matched
// nothing. Assemble and FromRows never produce it.
func Empty() *Table {
	return &Table{names: []string{}, cols: [][]string{}, index: map[string]int{}}
}

// FromRows builds a table from row-major cells. Every row must have len(names) cells.
func FromRows(names []string, rows [][]string) (*Table, error) {
	if len(names) == 0 {
		return nil, ErrNoColumns
	}
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Values: make([]string, 0, len(rows))}
	}
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, &RaggedRowError{Row: r, Want: len(names), Got: len(row)}
		}
		for i, cell := range row {
			cols[i].Values = append(cols[i].Values, cell)
		}
	}
	return Assemble(cols...)
}

func (t *Table) NumCols() int { return len(t.names) }

func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// Names returns column names in order.
func (t *Table) Names() []string { return append([]string(nil), t.names...) }

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), t.cols[i]...), true
}

// Columns returns copies of every column in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.names))
	for i, n := range t.names {
		out[i] = Column{Name: n, Values: append([]string(nil), t.cols[i]...)}
	}
	return out
}

func (t *Table) Row(r int) ([]string, error) {
	if r < 0 || r >= t.NumRows() {
		return nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, r)
	}
	row := make([]string, len(t.cols))
	for i, c := range t.cols {
		row[i] = c[r]
	}
	return row, nil
}

func (t *Table) Rows() [][]string {
	rows := make([][]string, t.NumRows())
	for r := range rows {
		rows[r], _ = t.Row(r)
	}
	return rows
}

// Records returns one name-to-value map per row.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, t.NumRows())
	for r := range out {
		rec := make(map[string]string, len(t.names))
		for i, name := range t.names {
			rec[name] = t.cols[i][r]
		}
		out[r] = rec
	}
	return out
}

// DropRows returns a copy without the given row indices. Duplicates are ignored;
// an index out of range is an error.
func (t *Table) DropRows(idx ...int) (*Table, error) {
	drop := make(map[int]struct{}, len(idx))
	for _, r := range idx {
		if r < 0 || r >= t.NumRows() {
			return nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, r)
		}
		drop[r] = struct{}{}
	}
	if t.NumCols() == 0 {
		return Empty(), nil
	}
	cols := make([]Column, len(t.names))
	for i, n := range t.names {
		kept := make([]string, 0, t.NumRows()-len(drop))
		for r, v := range t.cols[i] {
			if _, skip := drop[r]; !skip {
				kept = append(kept, v)
			}
		}
		cols[i] = Column{Name: n, Values: kept}
	}
	return Assemble(cols...)
}

// Select returns the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		vals, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
		cols = append(cols, Column{Name: n, Values: vals})
	}
	return Assemble(cols...)
}

// Rename returns a copy with columns renamed per mapping; unmapped names are kept.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	var unknown []string
	for from := range mapping {
		if _, ok := t.index[from]; !ok {
			unknown = append(unknown, from)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, strings.Join(unknown, ", "))
	}
	if t.NumCols() == 0 {
		return Empty(), nil
	}
	cols := t.Columns()
	for i := range cols {
		if to, ok := mapping[cols[i].Name]; ok {
			cols[i].Name = to
		}
	}
	return Assemble(cols...)
}

// WriteCSV writes a header row followed by every data row. An empty table writes nothing.
func (t *Table) WriteCSV(w io.Writer) error {
	if t.NumCols() == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return err
	}
	for r := 0; r < t.NumRows(); r++ {
		row, _ := t.Row(r)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type tableJSON struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Columns: t.names, Rows: t.Rows()})
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Columns) == 0 && len(raw.Rows) == 0 {
		*t = *Empty()
		return nil
	}
	built, err := FromRows(raw.Columns, raw.Rows)
	if err != nil {
		return err
	}
	*t = *built
	return nil
}
