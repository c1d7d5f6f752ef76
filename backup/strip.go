// CLAUDE:SUMMARY Strips export markup to plain text, preserving word boundaries for FTS.
package backup

import (
	stdhtml "html"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripMarkup converts exported content markup to plain text. Element
// boundaries become single spaces so that adjacent words never fuse
// ("<a>foo</a>bar" -> "foo bar" stays two tokens for the search index),
// entities are decoded, and runs of whitespace collapse to one space.
func StripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapseSpace(stdhtml.UnescapeString(s))
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Unparseable markup: fall back to the raw text so nothing is lost.
		return collapseSpace(stdhtml.UnescapeString(s))
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return collapseSpace(sb.String())
}

// collapseSpace trims and reduces any whitespace run to a single space.
func collapseSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}
