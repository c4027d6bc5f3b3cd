// Package extractor turns a decoded message tree into plain text, HTML
// derived text, tables and attachment names.
package extractor

import (
	"strings"

	"github.com/felo/cargo-eml-prompts/internal/parser"
)

// Content is everything textual pulled out of one message tree
type Content struct {
	PlainText string
	HTMLText  string
	Tables    []Table
}

// Extract walks the tree depth-first in document order. Plain text leaves
// are concatenated verbatim, HTML leaves contribute their visible text and
// their tables. Other leaves and containers contribute nothing.
func Extract(root *parser.Node) Content {
	var plain, htmlText strings.Builder
	var tables []Table

	root.Walk(func(n *parser.Node) {
		if n.IsContainer() {
			return
		}
		switch n.MediaType {
		case parser.MediaPlain:
			plain.WriteString(n.Body)
		case parser.MediaHTML:
			doc, err := ParseHTML(n.Body)
			if err != nil {
				return
			}
			htmlText.WriteString(HTMLText(doc))
			tables = append(tables, HTMLTables(doc)...)
		}
	})

	return Content{
		PlainText: plain.String(),
		HTMLText:  htmlText.String(),
		Tables:    tables,
	}
}

// CollectAttachments returns the filename of every part that carries one,
// in traversal order and regardless of media type. Payloads are not read.
func CollectAttachments(root *parser.Node) []string {
	var names []string
	root.Walk(func(n *parser.Node) {
		if n.Filename != "" {
			names = append(names, n.Filename)
		}
	})
	return names
}
