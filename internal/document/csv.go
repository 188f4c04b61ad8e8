package document

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/baxromumarov/tabscrape/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVDocument holds CSV records split into an optional header and data rows.
type CSVDocument struct {
	header []string
	rows   [][]string
	width  int
}

func (*CSVDocument) Format() Format { return FormatCSV }
func (*CSVDocument) document()      {}

// ParseCSV splits body on opts.Delimiter (comma by default). Every record must have the
// same number of fields. With opts.Header the first record names the columns.
func ParseCSV(body []byte, opts Options) (*CSVDocument, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.FieldsPerRecord = 0
	records, err := r.ReadAll()
	if err != nil {
		return nil, &MalformedInputError{Format: FormatCSV, Err: err}
	}

	doc := &CSVDocument{}
	if len(records) > 0 {
		doc.width = len(records[0])
	}
	if opts.Header && len(records) > 0 {
		doc.header = records[0]
		records = records[1:]
	}
	doc.rows = records
	return doc, nil
}

// Header returns the header row, or nil when the CSV was parsed without one.
func (d *CSVDocument) Header() []string {
	return append([]string(nil), d.header...)
}

// Names returns the header, or V1..Vn when there is none.
func (d *CSVDocument) Names() []string {
	if d.header != nil {
		return d.Header()
	}
	names := make([]string, d.width)
	for i := range names {
		names[i] = "V" + strconv.Itoa(i+1)
	}
	return names
}

func (d *CSVDocument) NumRows() int { return len(d.rows) }

// Rows returns a copy of the data rows.
func (d *CSVDocument) Rows() [][]string {
	out := make([][]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Column returns the values of the named column.
func (d *CSVDocument) Column(name string) ([]string, bool) {
	for i, n := range d.Names() {
		if n != name {
			continue
		}
		vals := make([]string, len(d.rows))
		for r, row := range d.rows {
			vals[r] = row[i]
		}
		return vals, true
	}
	return nil, false
}

func (d *CSVDocument) ToTable() (*table.Table, error) {
	return table.FromRows(d.Names(), d.rows)
}
