package table

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanNames returns a copy whose column names are lower snake_case ASCII. Accents are
// stripped, camelCase is split, names starting with a digit get an "x" prefix, and
// collisions get _2, _3 suffixes.
func (t *Table) CleanNames() *Table {
	if t.NumCols() == 0 {
		return Empty()
	}
	used := make(map[string]bool, len(t.names))
	cols := t.Columns()
	for i := range cols {
		base := CleanName(cols[i].Name)
		name := base
		for n := 2; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		cols[i].Name = name
	}
	out, _ := Assemble(cols...)
	return out
}

// CleanName applies the CleanNames rules to a single name.
func CleanName(name string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err == nil {
		name = stripped
	}
	name = splitCamel(name)
	name = cases.Lower(language.Und).String(name)

	var sb strings.Builder
	pendingSep := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
		case r == '%':
			if sb.Len() > 0 {
				sb.WriteByte('_')
			}
			sb.WriteString("percent")
			pendingSep = true
		default:
			pendingSep = true
		}
	}
	out := sb.String()
	if out == "" {
		return "x"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "x" + out
	}
	return out
}

func splitCamel(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(rs[i-1]) {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
