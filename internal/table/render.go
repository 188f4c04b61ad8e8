package table

import (
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Render draws the table for terminal output. Header names are printed as-is.
func (t *Table) Render() string {
	tw := prettytable.NewWriter()
	style := prettytable.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	header := make(prettytable.Row, len(t.names))
	for i, n := range t.names {
		header[i] = n
	}
	tw.AppendHeader(header)
	for r := 0; r < t.NumRows(); r++ {
		cells, _ := t.Row(r)
		row := make(prettytable.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}
