// Package selector holds the locator values consumed by the extractor. Each selector is
// parsed and validated once at construction; extraction code never sees raw syntax.
package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// Selector is a sealed union: CSS, XPath, Table, Path and Column.
type Selector interface {
	fmt.Stringer
	selector()
}

const (
	KindCSS    = "css"
	KindXPath  = "xpath"
	KindTable  = "table"
	KindPath   = "path"
	KindColumn = "column"
)

// CSS is a compiled CSS selector group.
type CSS struct {
	expr    string
	matcher cascadia.Selector
}

func NewCSS(expr string) (CSS, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return CSS{}, errors.New("empty css selector")
	}
	m, err := cascadia.Compile(expr)
	if err != nil {
		return CSS{}, fmt.Errorf("css selector %q: %w", expr, err)
	}
	return CSS{expr: expr, matcher: m}, nil
}

// MustCSS panics on invalid syntax; for package-level selectors.
func MustCSS(expr string) CSS {
	s, err := NewCSS(expr)
	if err != nil {
		panic(err)
	}
	return s
}

func (s CSS) Matcher() cascadia.Selector { return s.matcher }
func (s CSS) String() string             { return s.expr }
func (CSS) selector()                    {}

// XPath is a compiled XPath 1.0 expression.
type XPath struct {
	expr     string
	compiled *xpath.Expr
}

func NewXPath(expr string) (XPath, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return XPath{}, errors.New("empty xpath expression")
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return XPath{}, fmt.Errorf("xpath %q: %w", expr, err)
	}
	return XPath{expr: expr, compiled: compiled}, nil
}

func (s XPath) Expr() *xpath.Expr { return s.compiled }
func (s XPath) String() string    { return s.expr }
func (XPath) selector()           {}

// Table is the 0-based ordinal of a table in document order.
type Table int

func (t Table) String() string { return "table[" + strconv.Itoa(int(t)) + "]" }
func (Table) selector()        {}

// Column names a CSV column.
type Column string

func (c Column) String() string { return string(c) }
func (Column) selector()        {}

// Parse builds a selector of the given kind from its text form. For KindTable the
// expression is the ordinal.
func Parse(kind, expr string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindCSS, "":
		return NewCSS(expr)
	case KindXPath:
		return NewXPath(expr)
	case KindTable:
		n, err := strconv.Atoi(strings.TrimSpace(expr))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("table selector %q: want a non-negative index", expr)
		}
		return Table(n), nil
	case KindPath:
		return ParsePath(expr)
	case KindColumn:
		if strings.TrimSpace(expr) == "" {
			return nil, errors.New("empty column selector")
		}
		return Column(expr), nil
	default:
		return nil, fmt.Errorf("unknown selector kind %q", kind)
	}
}
