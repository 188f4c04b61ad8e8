package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/extract"
	"github.com/baxromumarov/tabscrape/internal/jsonvalue"
	"github.com/baxromumarov/tabscrape/internal/selector"
	"github.com/baxromumarov/tabscrape/internal/table"
)

func htmlDoc(t *testing.T, markup string) *document.HTMLDocument {
	t.Helper()
	doc, err := document.ParseHTMLString(markup)
	require.NoError(t, err)
	return doc
}

func jsonDoc(t *testing.T, body string) *document.JSONDocument {
	t.Helper()
	doc, err := document.ParseJSON([]byte(body), document.Options{})
	require.NoError(t, err)
	return doc
}

func TestTables_DocumentOrder(t *testing.T) {
	doc := htmlDoc(t, `
		<table><tr><th>x</th></tr><tr><td>1</td></tr></table>
		<p>between</p>
		<table><tr><th>y</th><th>z</th></tr></table>
		<table><tr><td>q</td></tr></table>`)

	tables := extract.Tables(doc)
	require.Len(t, tables, 3)
	for i, tbl := range tables {
		assert.Equal(t, i, tbl.Index)
	}
	assert.Equal(t, []string{"x"}, tables[0].Header)
	assert.Equal(t, [][]string{{"1"}}, tables[0].Rows)
	assert.Equal(t, []string{"y", "z"}, tables[1].Header)
	assert.Empty(t, tables[1].Rows)
	assert.Equal(t, []string{"q"}, tables[2].Header)
}

func TestTables_NestedStaySeparate(t *testing.T) {
	doc := htmlDoc(t, `<table>
		<tr><th>outer</th></tr>
		<tr><td><table><tr><td>inner</td></tr><tr><td>more</td></tr></table></td></tr>
	</table>`)

	tables := extract.Tables(doc)
	require.Len(t, tables, 2)
	assert.Equal(t, []string{"outer"}, tables[0].Header)
	require.Len(t, tables[0].Rows, 1, "inner rows do not leak into the outer table")
	assert.Equal(t, []string{"inner"}, tables[1].Header)
	assert.Equal(t, [][]string{{"more"}}, tables[1].Rows)
}

func TestTables_Spans(t *testing.T) {
	doc := htmlDoc(t, `<table>
		<tr><th>Region</th><th colspan="2">Population</th></tr>
		<tr><td rowspan="2">North</td><td>1</td><td>2</td></tr>
		<tr><td>3</td><td>4</td></tr>
	</table>`)

	tbl, err := extract.Table(doc, selector.Table(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Population", "Population"}, tbl.Header)
	assert.Equal(t, [][]string{{"North", "1", "2"}, {"North", "3", "4"}}, tbl.Rows)
	assert.Equal(t, []string{"Region", "Population", "Population_2"}, tbl.Names())
	assert.False(t, tbl.Ragged())
}

func TestTables_RowspanPastShortRow(t *testing.T) {
	doc := htmlDoc(t, `<table>
		<tr><th>a</th><th>b</th><th>c</th></tr>
		<tr><td>1</td><td>2</td><td rowspan="3">x</td></tr>
		<tr><td>3</td></tr>
		<tr><td>4</td><td>5</td></tr>
	</table>`)

	tbl, err := extract.Table(doc, selector.Table(0))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", "x"}, {"3", "", "x"}, {"4", "5", "x"}}, tbl.Rows)
	assert.False(t, tbl.Ragged())
}

func TestTable_OutOfRange(t *testing.T) {
	doc := htmlDoc(t, `<table><tr><td>1</td></tr></table>`)
	_, err := extract.Table(doc, selector.Table(1))
	var sm *extract.SelectorMatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "table[1]", sm.Selector)
}

const footnoteTable = `<table>
	<tr><th>Country</th><th>Population</th></tr>
	<tr><td colspan="2">Note: estimates</td></tr>
	<tr><td>China</td><td>1,411</td></tr>
	<tr><td>India</td><td>1,380</td></tr>
</table>`

func TestRawTable_FootnoteTrim(t *testing.T) {
	tbl, err := extract.Table(htmlDoc(t, footnoteTable), selector.Table(0))
	require.NoError(t, err)

	assert.Equal(t, []int{0}, tbl.UniformRows())
	want := [][]string{{"China", "1,411"}, {"India", "1,380"}}

	byUniform := tbl.DropUniformRows()
	assert.Equal(t, want, byUniform.Rows)

	byFirst, err := tbl.DropFirstRow()
	require.NoError(t, err)
	assert.Equal(t, want, byFirst.Rows)

	assert.Len(t, tbl.Rows, 3, "trimming never edits the source table")

	out, err := byFirst.ToTable()
	require.NoError(t, err)
	assert.Equal(t, []string{"Country", "Population"}, out.Names())
	pop, _ := out.Column("Population")
	assert.Equal(t, []string{"1,411", "1,380"}, pop)

	_, err = tbl.DropRows(7)
	assert.ErrorIs(t, err, table.ErrRowOutOfRange)
}

func TestRawTable_RaggedAndFill(t *testing.T) {
	tbl, err := extract.Table(htmlDoc(t, `<table>
		<tr><th>a</th><th>b</th></tr>
		<tr><td>only</td></tr>
		<tr><td>1</td><td>2</td></tr>
	</table>`), selector.Table(0))
	require.NoError(t, err)
	assert.True(t, tbl.Ragged())

	_, err = tbl.ToTable()
	assert.ErrorIs(t, err, table.ErrColumnLengthMismatch)
	var mismatch *table.ColumnLengthMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, table.ColumnLengthMismatchError{Column: "b", Want: 2, Got: 1}, *mismatch)

	wide := &extract.RawTable{Header: []string{"a"}, Rows: [][]string{{"1", "x"}, {"2"}}}
	_, err = wide.ToTable()
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, table.ColumnLengthMismatchError{Column: "V2", Want: 0, Got: 1}, *mismatch)

	filled, err := tbl.Fill().ToTable()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"only", ""}, {"1", "2"}}, filled.Rows())
}

func TestRawTable_WithoutHeader(t *testing.T) {
	tbl, err := extract.Table(htmlDoc(t, footnoteTable), selector.Table(0))
	require.NoError(t, err)
	bare := tbl.WithoutHeader()
	assert.Nil(t, bare.Header)
	assert.Len(t, bare.Rows, 4)
	assert.Equal(t, []string{"V1", "V2"}, bare.Names())
}

func TestElements_CSSAndXPath(t *testing.T) {
	doc := htmlDoc(t, `<ul><li class="a">One</li><li>Two</li></ul><input disabled>`)

	css, err := extract.Elements(doc, selector.MustCSS("li"))
	require.NoError(t, err)
	require.Len(t, css, 2)
	assert.Equal(t, "One", css[0].Text())
	assert.Equal(t, "Two", css[1].Text())
	assert.Equal(t, "li", css[0].Tag())

	xp, err := selector.NewXPath("//li")
	require.NoError(t, err)
	nodes, err := extract.Elements(doc, xp)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Two", nodes[1].Text())

	attrs, err := selector.NewXPath("//li/@class")
	require.NoError(t, err)
	nodes, err = extract.Elements(doc, attrs)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "a", nodes[0].Text())

	none, err := extract.Elements(doc, selector.MustCSS("table"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestElements_Scoped(t *testing.T) {
	doc := htmlDoc(t, `<div class="card"><b>A</b></div><div class="card"><b>B</b><b>C</b></div>`)
	cards, err := extract.Elements(doc, selector.MustCSS(".card"))
	require.NoError(t, err)
	require.Len(t, cards, 2)

	inner, err := cards[1].Find(selector.MustCSS("b"))
	require.NoError(t, err)
	require.Len(t, inner, 2)
	assert.Equal(t, "B", inner[0].Text())
}

func TestRequireElements(t *testing.T) {
	doc := htmlDoc(t, `<p>x</p>`)
	_, err := extract.RequireElements(doc, selector.MustCSS("span"))
	var sm *extract.SelectorMatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "span", sm.Selector)

	_, err = extract.Elements(doc, selector.Table(0))
	require.ErrorAs(t, err, &sm)
}

func TestNode_Attr(t *testing.T) {
	doc := htmlDoc(t, `<ul><li class="a">One</li><li>Two</li></ul><input disabled>`)
	lis, err := extract.Elements(doc, selector.MustCSS("li"))
	require.NoError(t, err)

	v, ok := lis[0].Attr("class")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = lis[1].Attr("class")
	assert.False(t, ok, "absent attribute")
	assert.Equal(t, "", v)

	inputs, err := extract.Elements(doc, selector.MustCSS("input"))
	require.NoError(t, err)
	v, ok = inputs[0].Attr("disabled")
	assert.True(t, ok, "present but empty")
	assert.Equal(t, "", v)
}

func TestText_RawAndNormalized(t *testing.T) {
	doc := htmlDoc(t, "<div id=\"t\"><p>  Hello,\n   <b>world</b>!<br>Next&nbsp;line</p><script>x()</script></div>")
	nodes, err := extract.Elements(doc, selector.MustCSS("#t"))
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	assert.Equal(t, "  Hello,\n   world!Next\u00a0linex()", nodes[0].Text())
	assert.Equal(t, "Hello, world!\nNext line", nodes[0].NormalizedText())
}

func TestText_Blocks(t *testing.T) {
	doc := htmlDoc(t, `<div id="t"><h2>Title</h2><ul><li>a</li><li>b</li></ul>tail</div>`)
	nodes, err := extract.Elements(doc, selector.MustCSS("#t"))
	require.NoError(t, err)
	assert.Equal(t, "Title\na\nb\ntail", nodes[0].NormalizedText())
	assert.Equal(t, "Titleabtail", nodes[0].Text())
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		base, href, want string
		ok               bool
	}{
		{"https://example.com/list/", "item?id=1", "https://example.com/list/item?id=1", true},
		{"https://example.com/list", "/x", "https://example.com/x", true},
		{"", "https://other.org/a", "https://other.org/a", true},
		{"https://example.com", "mailto:a@example.com", "", false},
		{"https://example.com", "  ", "", false},
	}
	for _, tt := range tests {
		got, ok := extract.ResolveLink(tt.base, tt.href)
		assert.Equal(t, tt.ok, ok, tt.href)
		assert.Equal(t, tt.want, got, tt.href)
	}
}

func TestPath(t *testing.T) {
	root := jsonDoc(t, `{"name":"bulbasaur","height":7}`).Root()

	v, err := extract.Path(root, selector.MustKeys("height"))
	require.NoError(t, err)
	assert.Equal(t, "7", v.Text())
	n, ok := v.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, err = extract.Path(root, selector.MustKeys("weight"))
	var nf *extract.PathNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, nf.Segment)
}

func TestPath_NestedAndWildcard(t *testing.T) {
	root := jsonDoc(t, `{"data":[{"n":1,"tags":["a"]},{"n":2,"tags":[]}]}`).Root()

	p, err := selector.ParsePath("$.data[*].n")
	require.NoError(t, err)
	vals, err := extract.PathValues(root, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, vals)

	p, err = selector.ParsePath("data[1].n")
	require.NoError(t, err)
	vals, err = extract.PathValues(root, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, vals)

	for expr, seg := range map[string]int{
		"data[5]":         1,
		"data.n":          1,
		"data[0].n.x":     3,
		"data[*].tags[0]": 3,
	} {
		p, err := selector.ParsePath(expr)
		require.NoError(t, err)
		_, err = extract.Path(root, p)
		var nf *extract.PathNotFoundError
		require.ErrorAs(t, err, &nf, expr)
		assert.Equal(t, seg, nf.Segment, expr)
	}
}

func TestRecords(t *testing.T) {
	root := jsonDoc(t, `[{"a":1,"b":"x"},{"b":"y","c":null,"d":{"k":[1,2]}}]`).Root()
	tbl, err := extract.Records(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, tbl.Names())
	assert.Equal(t, [][]string{
		{"1", "x", "", ""},
		{"", "y", "", `{"k":[1,2]}`},
	}, tbl.Rows())

	_, err = extract.Records(jsonvalue.ObjectValue())
	assert.ErrorIs(t, err, extract.ErrNotRecords)

	_, err = extract.Records(jsonvalue.ArrayValue(jsonvalue.IntValue(1)))
	assert.ErrorIs(t, err, extract.ErrNotRecords)

	empty, err := extract.Records(jsonvalue.ArrayValue())
	require.NoError(t, err)
	assert.Zero(t, empty.NumRows())
	assert.Zero(t, empty.NumCols())

	_, err = extract.Records(jsonvalue.ArrayValue(jsonvalue.ObjectValue()))
	assert.ErrorIs(t, err, table.ErrNoColumns)
}

func TestEmbeddedJSON(t *testing.T) {
	doc := htmlDoc(t, `<html><head>
		<script type="application/ld+json">
		{"@context":"https://schema.org","@graph":[
			{"@type":"Dataset","name":"pop"},
			{"@type":["Thing","Organization"],"name":"org"}
		]}
		</script>
		<script>var notJSON = 1;</script>
	</head><body></body></html>`)

	vals, err := extract.EmbeddedJSON(doc, nil)
	require.NoError(t, err)
	require.Len(t, vals, 1)

	orgs := extract.FindByType(vals, "Organization")
	require.Len(t, orgs, 1)
	name, _ := orgs[0].Get("name")
	assert.Equal(t, "org", name.Text())
	assert.Len(t, extract.FindByType(vals, "Dataset"), 1)
	assert.Empty(t, extract.FindByType(vals, "Person"))
}

func TestEmbeddedJSON_Malformed(t *testing.T) {
	doc := htmlDoc(t, `<script type="application/ld+json">{"broken":</script>`)
	_, err := extract.EmbeddedJSON(doc, nil)
	var mi *document.MalformedInputError
	require.ErrorAs(t, err, &mi)
	assert.Equal(t, document.FormatJSON, mi.Format)
}

func TestExtract_Dispatch(t *testing.T) {
	html := htmlDoc(t, `<a href="/x">X</a><a>no link</a>`)
	f, err := extract.Extract(html, selector.MustCSS("a"), extract.FieldOptions{
		Attr: "href", Absolute: true, Base: "https://example.com/list",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/x", ""}, f.Values)

	f, err = extract.Extract(html, selector.MustCSS("a"), extract.FieldOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "no link"}, f.Values)

	f, err = extract.Extract(jsonDoc(t, `{"name":"bulbasaur","height":7}`), selector.MustKeys("name"), extract.FieldOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bulbasaur"}, f.Values)

	csv, err := document.ParseCSV([]byte("a,b\n1,2\n3,4\n"), document.Options{Header: true})
	require.NoError(t, err)
	f, err = extract.Extract(csv, selector.Column("b"), extract.FieldOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, f.Values)

	tf, err := extract.Extract(htmlDoc(t, footnoteTable), selector.Table(0), extract.FieldOptions{})
	require.NoError(t, err)
	require.NotNil(t, tf.Table)
	assert.Equal(t, 3, tf.Len())
}

func TestExtract_Mismatch(t *testing.T) {
	csv, err := document.ParseCSV([]byte("a\n1\n"), document.Options{Header: true})
	require.NoError(t, err)

	var sm *extract.SelectorMatchError
	_, err = extract.Extract(csv, selector.MustKeys("a"), extract.FieldOptions{})
	require.ErrorAs(t, err, &sm)

	_, err = extract.Extract(csv, selector.Column("nope"), extract.FieldOptions{})
	require.ErrorAs(t, err, &sm)

	_, err = extract.Extract(htmlDoc(t, `<p>x</p>`), selector.Column("a"), extract.FieldOptions{})
	require.ErrorAs(t, err, &sm)

	_, err = extract.Extract(htmlDoc(t, `<p>x</p>`), selector.MustCSS("span"), extract.FieldOptions{Required: true})
	require.ErrorAs(t, err, &sm)

	f, err := extract.Extract(htmlDoc(t, `<p>x</p>`), selector.MustCSS("span"), extract.FieldOptions{})
	require.NoError(t, err)
	assert.Empty(t, f.Values)
}
