package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/jsonvalue"
	"github.com/baxromumarov/tabscrape/internal/selector"
	"github.com/baxromumarov/tabscrape/internal/table"
)

// LDJSON selects embedded JSON-LD blocks.
var LDJSON = selector.MustCSS(`script[type="application/ld+json"]`)

// ErrNotRecords is returned by Records for values that are not an array of objects.
var ErrNotRecords = errors.New("json value is not an array of objects")

// Path walks p from v. A wildcard segment maps the rest of the path over every element
// of an array and collects the results into an array.
func Path(v jsonvalue.Value, p selector.Path) (jsonvalue.Value, error) {
	return walk(v, p, 0)
}

func walk(cur jsonvalue.Value, p selector.Path, i int) (jsonvalue.Value, error) {
	if i == len(p) {
		return cur, nil
	}
	seg := p[i]
	notFound := func(format string, args ...any) error {
		return &PathNotFoundError{Path: p, Segment: i, Reason: fmt.Sprintf(format, args...)}
	}

	if key, ok := seg.Key(); ok {
		if cur.Kind() != jsonvalue.Object {
			return jsonvalue.Value{}, notFound("cannot look up key %q in %s", key, cur.Kind())
		}
		next, ok := cur.Get(key)
		if !ok {
			return jsonvalue.Value{}, notFound("key %q not found", key)
		}
		return walk(next, p, i+1)
	}

	if cur.Kind() != jsonvalue.Array {
		return jsonvalue.Value{}, notFound("cannot index %s", cur.Kind())
	}
	if idx, ok := seg.Index(); ok {
		next, ok := cur.Index(idx)
		if !ok {
			return jsonvalue.Value{}, notFound("index %d out of range (length %d)", idx, cur.Len())
		}
		return walk(next, p, i+1)
	}

	items := cur.Items()
	out := make([]jsonvalue.Value, len(items))
	for k, item := range items {
		v, err := walk(item, p, i+1)
		if err != nil {
			return jsonvalue.Value{}, err
		}
		out[k] = v
	}
	return jsonvalue.ArrayValue(out...), nil
}

// PathValues is Path flattened to text: an array yields one value per element, anything
// else a single value.
func PathValues(v jsonvalue.Value, p selector.Path) ([]string, error) {
	got, err := Path(v, p)
	if err != nil {
		return nil, err
	}
	return texts(got), nil
}

func texts(v jsonvalue.Value) []string {
	if v.Kind() != jsonvalue.Array {
		return []string{v.Text()}
	}
	items := v.Items()
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text()
	}
	return out
}

// Records turns an array of objects into a table. Columns follow first appearance of
// each key; a record missing a key gets an empty cell. Nested values are kept as
// compact JSON. An empty array yields table.Empty.
func Records(v jsonvalue.Value) (*table.Table, error) {
	if v.Kind() != jsonvalue.Array {
		return nil, fmt.Errorf("%w: got %s", ErrNotRecords, v.Kind())
	}
	items := v.Items()
	if len(items) == 0 {
		return table.Empty(), nil
	}
	var names []string
	seen := map[string]bool{}
	for i, item := range items {
		if item.Kind() != jsonvalue.Object {
			return nil, fmt.Errorf("%w: element %d is %s", ErrNotRecords, i, item.Kind())
		}
		for _, k := range item.Keys() {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no keys", table.ErrNoColumns)
	}

	cols := make([]table.Column, len(names))
	for c, name := range names {
		vals := make([]string, len(items))
		for r, item := range items {
			if field, ok := item.Get(name); ok {
				vals[r] = field.Text()
			}
		}
		cols[c] = table.Column{Name: name, Values: vals}
	}
	return table.Assemble(cols...)
}

// EmbeddedJSON decodes the text of every element matched by sel, LDJSON when sel is nil.
// A block that fails to decode is a MalformedInputError.
func EmbeddedJSON(doc *document.HTMLDocument, sel selector.Selector) ([]jsonvalue.Value, error) {
	if sel == nil {
		sel = LDJSON
	}
	nodes, err := Elements(doc, sel)
	if err != nil {
		return nil, err
	}
	out := make([]jsonvalue.Value, 0, len(nodes))
	for _, n := range nodes {
		raw := strings.TrimSpace(n.Text())
		if raw == "" {
			continue
		}
		v, err := jsonvalue.Decode([]byte(raw))
		if err != nil {
			return nil, &document.MalformedInputError{Format: document.FormatJSON, Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// FindByType collects every object whose "@type" equals typ (or lists it), searching
// arrays and "@graph" members the way JSON-LD nests them.
func FindByType(values []jsonvalue.Value, typ string) []jsonvalue.Value {
	var out []jsonvalue.Value
	for _, v := range values {
		out = appendByType(out, v, typ)
	}
	return out
}

func appendByType(out []jsonvalue.Value, v jsonvalue.Value, typ string) []jsonvalue.Value {
	switch v.Kind() {
	case jsonvalue.Object:
		if t, ok := v.Get("@type"); ok && hasType(t, typ) {
			out = append(out, v)
		}
		if graph, ok := v.Get("@graph"); ok {
			out = appendByType(out, graph, typ)
		}
	case jsonvalue.Array:
		for _, item := range v.Items() {
			out = appendByType(out, item, typ)
		}
	}
	return out
}

func hasType(t jsonvalue.Value, typ string) bool {
	switch t.Kind() {
	case jsonvalue.String:
		s, _ := t.Str()
		return s == typ
	case jsonvalue.Array:
		for _, item := range t.Items() {
			if s, ok := item.Str(); ok && s == typ {
				return true
			}
		}
	}
	return false
}
