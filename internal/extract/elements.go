package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/selector"
)

// Node is one matched element (or, for XPath, a matched attribute or text node).
type Node struct {
	n *html.Node
}

func newNode(n *html.Node) *Node { return &Node{n: n} }

// HTML returns the underlying node. Callers must not modify it.
func (n *Node) HTML() *html.Node { return n.n }

// Tag is the element name, or "" for non-element nodes.
func (n *Node) Tag() string {
	if n.n.Type != html.ElementNode {
		return ""
	}
	return n.n.Data
}

// Text is the raw concatenation of the node's text.
func (n *Node) Text() string { return RawText(n.n) }

// NormalizedText is the node's text as a reader sees it; see NormalizedText.
func (n *Node) NormalizedText() string { return NormalizedText(n.n) }

// Attr reports the attribute's value and whether it is present. An absent attribute is
// distinct from one present with an empty value.
func (n *Node) Attr(name string) (string, bool) {
	if n.n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Find evaluates a CSS or XPath selector scoped to this node.
func (n *Node) Find(sel selector.Selector) ([]*Node, error) {
	return query(n.n, sel)
}

// Elements returns the nodes matching a CSS or XPath selector in document order. No
// match is an empty result, not an error.
func Elements(doc *document.HTMLDocument, sel selector.Selector) ([]*Node, error) {
	return query(doc.Root(), sel)
}

// RequireElements is Elements that fails with a SelectorMatchError on no match.
func RequireElements(doc *document.HTMLDocument, sel selector.Selector) ([]*Node, error) {
	nodes, err := Elements(doc, sel)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &SelectorMatchError{Selector: sel.String(), Reason: "no elements matched"}
	}
	return nodes, nil
}

func query(root *html.Node, sel selector.Selector) ([]*Node, error) {
	var matched []*html.Node
	switch s := sel.(type) {
	case selector.CSS:
		matched = goquery.NewDocumentFromNode(root).FindMatcher(s.Matcher()).Nodes
	case selector.XPath:
		matched = htmlquery.QuerySelectorAll(root, s.Expr())
	default:
		return nil, &SelectorMatchError{
			Selector: sel.String(),
			Reason:   fmt.Sprintf("%T cannot select html elements", sel),
		}
	}
	out := make([]*Node, len(matched))
	for i, m := range matched {
		out[i] = newNode(m)
	}
	return out, nil
}
