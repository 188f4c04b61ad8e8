// Package extract pulls tables, elements, text, attributes and JSON values out of parsed
// documents. Nothing here fetches or mutates a document.
package extract

import (
	"fmt"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/selector"
)

type TextMode int

const (
	TextNormalized TextMode = iota
	TextRaw
)

// FieldOptions control how matched HTML nodes become values.
type FieldOptions struct {
	// Attr, when set, reads this attribute instead of text. Nodes without it yield "".
	Attr string
	Text TextMode
	// Base resolves Attr values as links against this URL.
	Base     string
	Absolute bool
	// Required turns an empty result into a SelectorMatchError.
	Required bool
}

// Field is one extracted column of values, or a table when the selector picked one.
type Field struct {
	Selector string
	Values   []string
	Table    *RawTable
}

// Len is the number of values, or the row count for a table field.
func (f Field) Len() int {
	if f.Table != nil {
		return len(f.Table.Rows)
	}
	return len(f.Values)
}

// Extract applies sel to doc. Which selectors apply depends on the document: CSS, XPath
// and Table on HTML, Path on JSON, Column on CSV.
func Extract(doc document.Document, sel selector.Selector, opts FieldOptions) (Field, error) {
	f := Field{Selector: sel.String()}
	var err error
	switch d := doc.(type) {
	case *document.HTMLDocument:
		f, err = fromHTML(d, sel, opts)
	case *document.JSONDocument:
		p, ok := sel.(selector.Path)
		if !ok {
			return f, mismatch(sel, doc)
		}
		f.Values, err = PathValues(d.Root(), p)
	case *document.CSVDocument:
		c, ok := sel.(selector.Column)
		if !ok {
			return f, mismatch(sel, doc)
		}
		vals, found := d.Column(string(c))
		if !found {
			return f, &SelectorMatchError{Selector: sel.String(), Reason: "no such column"}
		}
		f.Values = vals
	default:
		return f, fmt.Errorf("unsupported document %T", doc)
	}
	if err != nil {
		return Field{}, err
	}
	if opts.Required && f.Len() == 0 {
		return Field{}, &SelectorMatchError{Selector: sel.String(), Reason: "matched nothing"}
	}
	return f, nil
}

func fromHTML(doc *document.HTMLDocument, sel selector.Selector, opts FieldOptions) (Field, error) {
	f := Field{Selector: sel.String()}
	if t, ok := sel.(selector.Table); ok {
		raw, err := Table(doc, t)
		if err != nil {
			return f, err
		}
		f.Table = raw
		return f, nil
	}

	nodes, err := Elements(doc, sel)
	if err != nil {
		return f, err
	}
	f.Values = make([]string, len(nodes))
	for i, n := range nodes {
		f.Values[i] = nodeValue(n, opts)
	}
	return f, nil
}

func nodeValue(n *Node, opts FieldOptions) string {
	if opts.Attr != "" {
		v, ok := n.Attr(opts.Attr)
		if !ok {
			return ""
		}
		if opts.Absolute {
			if abs, ok := ResolveLink(opts.Base, v); ok {
				return abs
			}
		}
		return v
	}
	if opts.Text == TextRaw {
		return n.Text()
	}
	return n.NormalizedText()
}

func mismatch(sel selector.Selector, doc document.Document) error {
	return &SelectorMatchError{
		Selector: sel.String(),
		Reason:   fmt.Sprintf("%T does not apply to %s documents", sel, doc.Format()),
	}
}
