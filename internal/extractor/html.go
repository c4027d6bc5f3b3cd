package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// Table is one HTML <table> as rows of trimmed cell text
type Table [][]string

// invisible elements whose text never reaches the reader
var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
}

// FindAll returns every element below n whose tag is one of tags, in
// document order, at any depth. n itself is not considered.
func FindAll(n *html.Node, tags ...string) []*html.Node {
	if n == nil {
		return nil
	}
	want := make(map[string]bool, len(tags))
	for _, tag := range tags {
		want[tag] = true
	}

	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && want[c.Data] {
				found = append(found, c)
			}
			walk(c)
		}
	}
	walk(n)
	return found
}

// textNodes returns the trimmed, non-empty visible text nodes below n
func textNodes(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
			return
		case html.ElementNode:
			if invisible[n.Data] {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// HTMLText returns the visible text of a parsed document, one text node
// per line
func HTMLText(doc *html.Node) string {
	return strings.TrimSpace(strings.Join(textNodes(doc), "\n"))
}

// HTMLTables returns every table in the document. Rows whose cells are all
// empty are dropped, and so are tables left without rows.
func HTMLTables(doc *html.Node) []Table {
	var tables []Table
	for _, tbl := range FindAll(doc, "table") {
		var rows Table
		for _, tr := range FindAll(tbl, "tr") {
			cells := FindAll(tr, "td", "th")
			row := make([]string, 0, len(cells))
			keep := false
			for _, cell := range cells {
				text := strings.Join(textNodes(cell), "")
				if text != "" {
					keep = true
				}
				row = append(row, text)
			}
			if keep {
				rows = append(rows, row)
			}
		}
		if len(rows) > 0 {
			tables = append(tables, rows)
		}
	}
	return tables
}

// ParseHTML parses an HTML fragment or document. x/net/html recovers from
// almost any input, so an error here means the reader itself failed.
func ParseHTML(src string) (*html.Node, error) {
	return html.Parse(strings.NewReader(src))
}
