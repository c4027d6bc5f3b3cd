// Package record assembles the normalized per-message record handed to the
// prompt writers.
package record

import (
	"strings"

	"github.com/felo/cargo-eml-prompts/internal/extractor"
	"github.com/felo/cargo-eml-prompts/internal/parser"
)

// EmailRecord is the normalized form of one message. Field order is the
// JSON key order consumers rely on.
type EmailRecord struct {
	Filename string `json:"filename" yaml:"filename" db:"filename"`
	Subject  string `json:"subject" yaml:"subject" db:"subject"`
	From     string `json:"from" yaml:"from" db:"from_addr"`
	To       string `json:"to" yaml:"to" db:"to_addr"`
	Date     string `json:"date" yaml:"date" db:"date"`
	Body     string `json:"body" yaml:"body" db:"body"`
}

// Input is everything Assemble needs
type Input struct {
	Filename    string
	Header      parser.Header
	Content     extractor.Content
	Attachments []string
}

// Assemble builds the record. Missing headers become empty strings.
func Assemble(in Input) EmailRecord {
	h := in.Header
	if h == nil {
		h = parser.Header{}
	}
	return EmailRecord{
		Filename: in.Filename,
		Subject:  h.Get("Subject"),
		From:     h.Get("From"),
		To:       h.Get("To"),
		Date:     h.Get("Date"),
		Body:     BuildBody(in.Content.PlainText, in.Content.HTMLText, in.Content.Tables, in.Attachments),
	}
}

// BuildBody joins the four sections with "\n" in fixed order: plain text,
// HTML text, table rows (cells joined by ", "), attachment names. Each
// section is trimmed, empty sections still contribute their separator, and
// the result is trimmed once more.
func BuildBody(plainText, htmlText string, tables []extractor.Table, attachments []string) string {
	var rows []string
	for _, table := range tables {
		for _, row := range table {
			rows = append(rows, strings.Join(row, ", "))
		}
	}

	sections := []string{
		strings.TrimSpace(plainText),
		strings.TrimSpace(htmlText),
		strings.TrimSpace(strings.Join(rows, "\n")),
		strings.TrimSpace(strings.Join(attachments, "\n")),
	}
	return strings.TrimSpace(strings.Join(sections, "\n"))
}

// FromMessage runs extraction and attachment collection over a decoded
// message and assembles its record
func FromMessage(filename string, msg *parser.Message) EmailRecord {
	return Assemble(Input{
		Filename:    filename,
		Header:      msg.Header(),
		Content:     extractor.Extract(msg.Root),
		Attachments: extractor.CollectAttachments(msg.Root),
	})
}
