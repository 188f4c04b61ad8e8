package document

import (
	"bytes"

	"github.com/baxromumarov/tabscrape/internal/jsonvalue"
)

type JSONDocument struct {
	root jsonvalue.Value
}

func (*JSONDocument) Format() Format { return FormatJSON }
func (*JSONDocument) document()      {}

// ParseJSON decodes body into a jsonvalue tree; opts.Lenient accepts JSON5.
func ParseJSON(body []byte, opts Options) (*JSONDocument, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	decode := jsonvalue.Decode
	if opts.Lenient {
		decode = jsonvalue.DecodeLenient
	}
	root, err := decode(body)
	if err != nil {
		return nil, &MalformedInputError{Format: FormatJSON, Err: err}
	}
	return &JSONDocument{root: root}, nil
}

func NewJSONDocument(root jsonvalue.Value) *JSONDocument { return &JSONDocument{root: root} }

func (d *JSONDocument) Root() jsonvalue.Value { return d.root }
