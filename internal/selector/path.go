package selector

import (
	"fmt"
	"strconv"
	"strings"
)

type segmentKind uint8

const (
	segKey segmentKind = iota
	segIndex
	segWildcard
)

// Segment is one step of a Path: an object key, an array index, or a wildcard that maps
// the rest of the path over every array element.
type Segment struct {
	kind  segmentKind
	key   string
	index int
}

func Key(k string) Segment { return Segment{kind: segKey, key: k} }
func Index(i int) Segment  { return Segment{kind: segIndex, index: i} }
func Wildcard() Segment    { return Segment{kind: segWildcard} }

func (s Segment) IsWildcard() bool { return s.kind == segWildcard }

func (s Segment) Key() (string, bool) { return s.key, s.kind == segKey }

func (s Segment) Index() (int, bool) { return s.index, s.kind == segIndex }

func (s Segment) String() string {
	switch s.kind {
	case segIndex:
		return "[" + strconv.Itoa(s.index) + "]"
	case segWildcard:
		return "[*]"
	default:
		if isPlainKey(s.key) {
			return s.key
		}
		return "[" + strconv.Quote(s.key) + "]"
	}
}

// Path is a JSON key/index sequence. The empty path selects the root.
type Path []Segment

func (Path) selector() {}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, s := range p {
		if s.kind == segKey && isPlainKey(s.key) {
			sb.WriteByte('.')
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Keys builds a path from strings (keys), ints (indices) and Segments.
func Keys(parts ...any) (Path, error) {
	p := make(Path, 0, len(parts))
	for i, part := range parts {
		switch v := part.(type) {
		case string:
			p = append(p, Key(v))
		case int:
			if v < 0 {
				return nil, fmt.Errorf("path part %d: negative index %d", i, v)
			}
			p = append(p, Index(v))
		case Segment:
			p = append(p, v)
		default:
			return nil, fmt.Errorf("path part %d: unsupported type %T", i, part)
		}
	}
	return p, nil
}

// MustKeys is Keys for literals known to be valid.
func MustKeys(parts ...any) Path {
	p, err := Keys(parts...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath reads dotted paths such as `data[0].name`, `results[*].id`, `$.a["b.c"]`.
func ParsePath(expr string) (Path, error) {
	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, "$")
	p := Path{}
	i := 0
	first := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '.':
			i++
			key, n := readKey(s[i:])
			if key == "" {
				return nil, fmt.Errorf("path %q: empty key at offset %d", expr, i)
			}
			p = append(p, Key(key))
			i += n
		case c == '[':
			end := bracketEnd(s[i:])
			if end < 0 {
				return nil, fmt.Errorf("path %q: unclosed '[' at offset %d", expr, i)
			}
			seg, err := parseBracket(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", expr, err)
			}
			p = append(p, seg)
			i += end + 1
		case first:
			key, n := readKey(s)
			p = append(p, Key(key))
			i += n
		default:
			return nil, fmt.Errorf("path %q: unexpected %q at offset %d", expr, c, i)
		}
		first = false
	}
	return p, nil
}

func readKey(s string) (string, int) {
	n := strings.IndexAny(s, ".[]")
	if n < 0 {
		n = len(s)
	}
	return s[:n], n
}

// bracketEnd returns the offset of the ']' closing the bracket that opens s, or -1.
// A quoted key is skipped whole, so it may contain ']'.
func bracketEnd(s string) int {
	i := 1
	for i < len(s) && s[i] == ' ' {
		i++
	}
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		q := s[i]
		for i++; i < len(s) && s[i] != q; i++ {
			if q == '"' && s[i] == '\\' {
				i++
			}
		}
		if i >= len(s) {
			return -1
		}
		i++
	}
	end := strings.IndexByte(s[i:], ']')
	if end < 0 {
		return -1
	}
	return i + end
}

func parseBracket(inner string) (Segment, error) {
	inner = strings.TrimSpace(inner)
	if inner == "*" {
		return Wildcard(), nil
	}
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		if inner[0] == '"' {
			k, err := strconv.Unquote(inner)
			if err != nil {
				return Segment{}, fmt.Errorf("bad quoted key %s", inner)
			}
			return Key(k), nil
		}
		return Key(inner[1 : len(inner)-1]), nil
	}
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return Segment{}, fmt.Errorf("bad index [%s]", inner)
	}
	return Index(n), nil
}

func isPlainKey(k string) bool {
	return k != "" && !strings.ContainsAny(k, ".[]\"' ")
}
