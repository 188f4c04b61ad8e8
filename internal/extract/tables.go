package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/selector"
	"github.com/baxromumarov/tabscrape/internal/table"
)

const maxSpan = 1000

// RawTable is an HTML table as a grid of cell text. By convention the first row is the
// header. Trim operations return new RawTables; nothing is trimmed implicitly.
type RawTable struct {
	// Index is the table's position among all tables in the document.
	Index  int
	Header []string
	Rows   [][]string
}

// Tables returns every <table> in document order, nested tables included. A table's rows
// are its own <tr> elements, not those of tables nested inside it.
func Tables(doc *document.HTMLDocument) []*RawTable {
	var out []*RawTable
	doc.Selection().Find("table").Each(func(i int, s *goquery.Selection) {
		out = append(out, parseTable(i, s))
	})
	return out
}

// Table returns the table at the selector's ordinal.
func Table(doc *document.HTMLDocument, sel selector.Table) (*RawTable, error) {
	tables := Tables(doc)
	if int(sel) < 0 || int(sel) >= len(tables) {
		return nil, &SelectorMatchError{
			Selector: sel.String(),
			Reason:   fmt.Sprintf("document has %d tables", len(tables)),
		}
	}
	return tables[sel], nil
}

type spanCell struct {
	text string
	left int
}

func parseTable(index int, s *goquery.Selection) *RawTable {
	self := s.Get(0)
	var grid [][]string
	pending := map[int]*spanCell{}

	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if owningTable(tr.Get(0)) != self {
			return
		}
		var row []string
		col := 0
		fill := func() {
			for {
				p, ok := pending[col]
				if !ok {
					return
				}
				row = append(row, p.text)
				p.left--
				if p.left == 0 {
					delete(pending, col)
				}
				col++
			}
		}

		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			fill()
			text := strings.Join(strings.Fields(cell.Text()), " ")
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for k := 0; k < colspan; k++ {
				row = append(row, text)
				if rowspan > 1 {
					pending[col] = &spanCell{text: text, left: rowspan - 1}
				}
				col++
			}
		})
		fill()
		// A span from an earlier row may sit past this row's last cell.
		last := -1
		for c := range pending {
			if c >= col {
				last = max(last, c)
			}
		}
		for col <= last {
			if _, ok := pending[col]; ok {
				fill()
				continue
			}
			row = append(row, "")
			col++
		}
		if len(row) > 0 {
			grid = append(grid, row)
		}
	})

	t := &RawTable{Index: index}
	if len(grid) > 0 {
		t.Header = grid[0]
		t.Rows = grid[1:]
	}
	return t
}

func owningTable(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "table" {
			return p
		}
	}
	return nil
}

func spanAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxSpan {
		return maxSpan
	}
	return n
}

func (t *RawTable) clone() *RawTable {
	out := &RawTable{Index: t.Index}
	if t.Header != nil {
		out.Header = append([]string(nil), t.Header...)
	}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Width is the widest row, header included.
func (t *RawTable) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Ragged reports whether any row differs in width from the header (or from the first row
// when there is no header).
func (t *RawTable) Ragged() bool {
	want := len(t.Header)
	if t.Header == nil && len(t.Rows) > 0 {
		want = len(t.Rows[0])
	}
	for _, r := range t.Rows {
		if len(r) != want {
			return true
		}
	}
	return false
}

// Names returns column names from the header. Blank header cells become V<n> and
// repeated names get _2, _3 suffixes. Without a header every column is V<n>.
func (t *RawTable) Names() []string {
	width := len(t.Header)
	if t.Header == nil {
		width = t.Width()
	}
	names := make([]string, width)
	used := make(map[string]bool, width)
	for i := range names {
		base := ""
		if i < len(t.Header) {
			base = t.Header[i]
		}
		if base == "" {
			base = "V" + strconv.Itoa(i+1)
		}
		name := base
		for n := 2; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// DropRows removes data rows by index.
func (t *RawTable) DropRows(idx ...int) (*RawTable, error) {
	drop := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(t.Rows) {
			return nil, fmt.Errorf("%w: %d", table.ErrRowOutOfRange, i)
		}
		drop[i] = struct{}{}
	}
	out := t.clone()
	kept := out.Rows[:0]
	for i, r := range out.Rows {
		if _, skip := drop[i]; !skip {
			kept = append(kept, r)
		}
	}
	out.Rows = kept
	return out, nil
}

// DropFirstRow removes the first data row, typically a footnote row under the header.
func (t *RawTable) DropFirstRow() (*RawTable, error) {
	return t.DropRows(0)
}

// UniformRows returns the indices of data rows with two or more cells that all hold the
// same text, the shape of a footnote cell spanning the whole table.
func (t *RawTable) UniformRows() []int {
	var out []int
	for i, r := range t.Rows {
		if len(r) < 2 {
			continue
		}
		uniform := true
		for _, c := range r[1:] {
			if c != r[0] {
				uniform = false
				break
			}
		}
		if uniform {
			out = append(out, i)
		}
	}
	return out
}

// DropUniformRows removes every row reported by UniformRows.
func (t *RawTable) DropUniformRows() *RawTable {
	out, _ := t.DropRows(t.UniformRows()...)
	return out
}

// WithoutHeader treats the header row as data; columns are then named V1..Vn.
func (t *RawTable) WithoutHeader() *RawTable {
	out := t.clone()
	if out.Header != nil {
		out.Rows = append([][]string{out.Header}, out.Rows...)
		out.Header = nil
	}
	return out
}

// Fill pads short rows (and the header) with empty cells up to Width.
func (t *RawTable) Fill() *RawTable {
	out := t.clone()
	w := out.Width()
	if out.Header != nil {
		for len(out.Header) < w {
			out.Header = append(out.Header, "")
		}
	}
	for i := range out.Rows {
		for len(out.Rows[i]) < w {
			out.Rows[i] = append(out.Rows[i], "")
		}
	}
	return out
}

// ToTable converts to a table.Table. Ragged rows fail with a
// *table.ColumnLengthMismatchError naming the first column whose value count differs
// from the row count; Fill first to pad them.
func (t *RawTable) ToTable() (*table.Table, error) {
	names := t.Names()
	out, err := table.FromRows(names, t.Rows)
	var ragged *table.RaggedRowError
	if errors.As(err, &ragged) {
		return nil, t.lengthMismatch(names)
	}
	return out, err
}

// lengthMismatch reads the table column by column. A column past the header has no
// name, so it wants no values.
func (t *RawTable) lengthMismatch(names []string) error {
	for i := 0; i < t.Width(); i++ {
		got := 0
		for _, r := range t.Rows {
			if len(r) > i {
				got++
			}
		}
		name, want := "V"+strconv.Itoa(i+1), 0
		if i < len(names) {
			name, want = names[i], len(t.Rows)
		}
		if got != want {
			return &table.ColumnLengthMismatchError{Column: name, Want: want, Got: got}
		}
	}
	return table.ErrColumnLengthMismatch
}
