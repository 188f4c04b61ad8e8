package document

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// HTMLDocument is a parsed DOM. Extraction code reads it but never edits it.
type HTMLDocument struct {
	doc *goquery.Document
}

func (*HTMLDocument) Format() Format { return FormatHTML }
func (*HTMLDocument) document()      {}

// ParseHTML decodes body to UTF-8 using the charset from contentType (or sniffing when
// absent) and builds a DOM. Parsing is lenient the way browsers are: broken markup is
// repaired rather than rejected.
func ParseHTML(body []byte, contentType string) (*HTMLDocument, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, &MalformedInputError{Format: FormatHTML, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &MalformedInputError{Format: FormatHTML, Err: err}
	}
	return &HTMLDocument{doc: doc}, nil
}

// ParseHTMLString is ParseHTML for UTF-8 markup held in memory.
func ParseHTMLString(markup string) (*HTMLDocument, error) {
	return ParseHTML([]byte(markup), "text/html; charset=utf-8")
}

// Selection returns the document root selection.
func (d *HTMLDocument) Selection() *goquery.Selection { return d.doc.Selection }

// Root returns the document node.
func (d *HTMLDocument) Root() *html.Node { return d.doc.Nodes[0] }
