package parser

import (
	"net/textproto"
)

// MediaType classifies a message part for text extraction
type MediaType int

const (
	// MediaOther covers attachments, containers and anything unrecognized
	MediaOther MediaType = iota
	MediaPlain
	MediaHTML
)

// Header holds decoded header values keyed by canonical header name.
// Lookups are case-insensitive and a missing header reads as "".
type Header map[string]string

// Get returns the first value of the named header, or "" if absent
func (h Header) Get(key string) string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

// Node is one part of a decoded message tree. A container node has
// children and no body; a leaf node has no children.
type Node struct {
	Header      Header
	ContentType string // full media type as declared, e.g. "application/pdf"
	MediaType   MediaType
	Filename    string
	Body        string
	Children    []*Node
}

// IsContainer reports whether the node holds sub-parts
func (n *Node) IsContainer() bool {
	return len(n.Children) > 0
}

// Walk visits n and every descendant depth-first in document order
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Message is a decoded message tree plus any recoverable problems found
// while decoding it
type Message struct {
	Root     *Node
	Size     int64
	Warnings []error
}

// Header returns the top-level message headers
func (m *Message) Header() Header {
	if m == nil || m.Root == nil {
		return Header{}
	}
	return m.Root.Header
}
