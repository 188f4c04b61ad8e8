package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// blockElements start and end a line in normalized text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tr": true, "ul": true, "caption": true,
}

var skipElements = map[string]bool{
	"script": true, "style": true, "template": true, "noscript": true,
}

// RawText concatenates every text node under n, whitespace and script bodies included.
func RawText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(RawText(c))
	}
	return sb.String()
}

// NormalizedText renders n the way a reader sees it. Whitespace runs collapse to one
// space and <br> or block elements break lines. Script and style bodies are skipped.
func NormalizedText(n *html.Node) string {
	var sb strings.Builder
	writeText(&sb, n)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		// Source line breaks are plain whitespace; only markup breaks lines.
		sb.WriteString(strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, n.Data))
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
		switch n.Data {
		case "br":
			sb.WriteByte('\n')
			return
		case "td", "th":
			sb.WriteByte(' ')
			defer sb.WriteByte(' ')
		}
		if blockElements[n.Data] {
			sb.WriteByte('\n')
			defer sb.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}

// ResolveLink resolves href against base. mailto:, tel: and javascript: links and
// unparsable values report false.
func ResolveLink(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		u = b.ResolveReference(u)
	}
	return u.String(), true
}
