// Package document turns a fetched body into a format-specific tree: an HTML DOM, CSV
// rows, or a JSON value.
package document

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/baxromumarov/tabscrape/internal/httpx"
)

type Format int

const (
	FormatAuto Format = iota
	FormatHTML
	FormatCSV
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatHTML:
		return "html"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat reads a format name; "" means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "html", "htm":
		return FormatHTML, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format %q", s)
	}
}

func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Document is one of *HTMLDocument, *CSVDocument or *JSONDocument.
type Document interface {
	Format() Format
	document()
}

// Options tune parsing. The zero value parses CSV with a comma and no header row.
type Options struct {
	Delimiter rune
	Header    bool
	// Lenient accepts JSON5 input.
	Lenient bool
}

// MalformedInputError reports a body that could not be parsed in the requested format.
type MalformedInputError struct {
	Format Format
	URL    string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("malformed %s input: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("malformed %s input from %s: %v", e.Format, e.URL, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Parse builds a document from a fetch result. FormatAuto picks the format from the
// response content type.
func Parse(res *httpx.Result, format Format, opts Options) (Document, error) {
	if res == nil {
		return nil, &MalformedInputError{Format: format, Err: errors.New("nil fetch result")}
	}
	if format == FormatAuto {
		detected, err := DetectFormat(res.ContentType)
		if err != nil {
			return nil, &MalformedInputError{Format: format, URL: res.URL, Err: err}
		}
		format = detected
	}

	var (
		doc Document
		err error
	)
	switch format {
	case FormatHTML:
		doc, err = ParseHTML(res.Body, res.ContentType)
	case FormatCSV:
		doc, err = ParseCSV(res.Body, opts)
	case FormatJSON:
		doc, err = ParseJSON(res.Body, opts)
	default:
		err = &MalformedInputError{Format: format, Err: errors.New("unsupported format")}
	}
	if err != nil {
		var mi *MalformedInputError
		if errors.As(err, &mi) && mi.URL == "" {
			mi.URL = res.URL
		}
		return nil, err
	}
	return doc, nil
}

// DetectFormat maps a Content-Type header to a format.
func DetectFormat(contentType string) (Format, error) {
	if strings.TrimSpace(contentType) == "" {
		return FormatAuto, errors.New("no content type to detect format from")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatAuto, fmt.Errorf("content type %q: %w", contentType, err)
	}
	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return FormatHTML, nil
	case mediaType == "text/csv", mediaType == "application/csv", mediaType == "text/comma-separated-values":
		return FormatCSV, nil
	case mediaType == "application/json", mediaType == "text/json", strings.HasSuffix(mediaType, "+json"):
		return FormatJSON, nil
	default:
		return FormatAuto, fmt.Errorf("cannot detect format from content type %q", mediaType)
	}
}
