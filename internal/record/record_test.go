package record

import (
	"encoding/json"
	"testing"

	"github.com/felo/cargo-eml-prompts/internal/extractor"
	"github.com/felo/cargo-eml-prompts/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildBody_TablesAndAttachmentsOnly tests the canonical table/attachment rendering
func TestBuildBody_TablesAndAttachmentsOnly(t *testing.T) {
	body := BuildBody("", "", []extractor.Table{{{"A", "B"}, {"C", "D"}}}, []string{"x.pdf"})
	assert.Equal(t, "A, B\nC, D\nx.pdf", body)
}

// TestBuildBody_SectionOrder tests the fixed section order and trimming
func TestBuildBody_SectionOrder(t *testing.T) {
	body := BuildBody(
		"\n  plain text \n",
		"  html text\n",
		[]extractor.Table{{{"r1c1", "r1c2"}}, {{"t2"}}},
		[]string{"a.pdf", "b.xlsx"},
	)
	assert.Equal(t, "plain text\nhtml text\nr1c1, r1c2\nt2\na.pdf\nb.xlsx", body)
}

// TestBuildBody_EmptyMiddleSections tests that empty sections keep their separators
func TestBuildBody_EmptyMiddleSections(t *testing.T) {
	body := BuildBody("hello", "", nil, []string{"x.pdf"})
	assert.Equal(t, "hello\n\n\nx.pdf", body)

	assert.Equal(t, "", BuildBody("", "", nil, nil))
}

// TestAssemble_SinglePlainPart tests that a plain single-part message is not duplicated
func TestAssemble_SinglePlainPart(t *testing.T) {
	msg, err := parser.Decode([]byte("Subject: Hi\nFrom: a@example.com\nTo: b@example.com\nDate: Mon, 1 Jan 2024 10:00:00 +0000\n\n  just the body  \n"))
	require.NoError(t, err)

	rec := FromMessage("hi.eml", msg)
	assert.Equal(t, EmailRecord{
		Filename: "hi.eml",
		Subject:  "Hi",
		From:     "a@example.com",
		To:       "b@example.com",
		Date:     "Mon, 1 Jan 2024 10:00:00 +0000",
		Body:     "just the body",
	}, rec)
}

// TestAssemble_MissingDate tests that a missing Date header reads as an empty string
func TestAssemble_MissingDate(t *testing.T) {
	msg, err := parser.Decode([]byte("Subject: No date\n\nbody\n"))
	require.NoError(t, err)

	rec := FromMessage("nodate.eml", msg)
	assert.Equal(t, "", rec.Date)
	assert.Equal(t, "", rec.From)
	assert.Equal(t, "", rec.To)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date":""`)
}

// TestAssemble_NilHeader tests assembling without any header map
func TestAssemble_NilHeader(t *testing.T) {
	rec := Assemble(Input{Filename: "f.eml"})
	assert.Equal(t, EmailRecord{Filename: "f.eml"}, rec)
}

// TestFromMessage_Nested tests the full pipeline over a multipart fixture
func TestFromMessage_Nested(t *testing.T) {
	msg, err := parser.DecodeFile("../parser/testdata/nested.eml")
	require.NoError(t, err)

	rec := FromMessage("nested.eml", msg)
	assert.Equal(t, "Reservación AWB", rec.Subject)
	assert.Equal(t, "Tue, 2 Jan 2024 08:30:00 +0100", rec.Date)
	assert.Equal(t,
		"Please book the shipment below.\n"+
			"Please book the shipment below.\nAWB\nPieces\n176-12345675\n3\n"+
			"AWB, Pieces\n176-12345675, 3\n"+
			"booking.pdf",
		rec.Body)

	again := FromMessage("nested.eml", msg)
	assert.Equal(t, rec, again, "Records built twice from one tree must be identical")
}

// TestEmailRecord_JSONKeyOrder tests the serialized key order
func TestEmailRecord_JSONKeyOrder(t *testing.T) {
	data, err := json.Marshal(EmailRecord{Filename: "f", Subject: "s", From: "fr", To: "t", Date: "d", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, `{"filename":"f","subject":"s","from":"fr","to":"t","date":"d","body":"b"}`, string(data))
}
