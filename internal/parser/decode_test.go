package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecode_SimpleEmail tests decoding a basic single-part plain text email
func TestDecode_SimpleEmail(t *testing.T) {
	msg, err := DecodeFile("testdata/simple.eml")

	require.NoError(t, err, "Should decode simple email without error")
	require.NotNil(t, msg.Root)
	assert.Empty(t, msg.Warnings)

	h := msg.Header()
	assert.Equal(t, "Simple Test Email", h.Get("Subject"))
	assert.Equal(t, "sender@example.com", h.Get("From"))
	assert.Equal(t, "recipient@example.com", h.Get("To"))
	assert.Equal(t, "Mon, 1 Jan 2024 10:00:00 +0000", h.Get("Date"))

	root := msg.Root
	assert.False(t, root.IsContainer())
	assert.Equal(t, MediaPlain, root.MediaType)
	assert.Contains(t, root.Body, "This is a simple test email")
	assert.Empty(t, root.Filename)
}

// TestDecode_HeaderLookupIsCaseInsensitive tests header access regardless of case
func TestDecode_HeaderLookupIsCaseInsensitive(t *testing.T) {
	msg, err := DecodeFile("testdata/simple.eml")
	require.NoError(t, err)

	h := msg.Header()
	assert.Equal(t, "Simple Test Email", h.Get("subject"))
	assert.Equal(t, "Simple Test Email", h.Get("SUBJECT"))
	assert.Equal(t, "<simple123@example.com>", h.Get("message-id"))
	assert.Equal(t, "", h.Get("X-Not-There"))
}

// TestDecode_NestedMultipart tests that the tree mirrors the multipart nesting
func TestDecode_NestedMultipart(t *testing.T) {
	msg, err := DecodeFile("testdata/nested.eml")
	require.NoError(t, err)

	root := msg.Root
	assert.Equal(t, "Reservación AWB", root.Header.Get("Subject"))
	assert.Contains(t, root.Header.Get("From"), "ops@forwarder.example")

	require.True(t, root.IsContainer())
	require.Len(t, root.Children, 2)
	assert.Empty(t, root.Body, "Containers never carry a body")

	alt := root.Children[0]
	require.Len(t, alt.Children, 2)
	assert.Equal(t, MediaPlain, alt.Children[0].MediaType)
	assert.Equal(t, "Please book the shipment below.", strings.TrimSpace(alt.Children[0].Body))
	assert.Equal(t, MediaHTML, alt.Children[1].MediaType)
	assert.Contains(t, alt.Children[1].Body, "<table>")

	pdf := root.Children[1]
	assert.False(t, pdf.IsContainer())
	assert.Equal(t, MediaOther, pdf.MediaType)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.Equal(t, "booking.pdf", pdf.Filename)
	assert.Empty(t, pdf.Body, "Attachment payloads are not decoded")
}

// TestDecode_Windows1252Charset tests decoding a body declared as windows-1252
func TestDecode_Windows1252Charset(t *testing.T) {
	msg, err := DecodeFile("testdata/windows-1252.eml")

	require.NoError(t, err, "Should decode windows-1252 email without error")
	assert.Empty(t, msg.Warnings)
	assert.Contains(t, msg.Root.Body, "Café shipment")
}

// TestDecode_MissingHeaders tests that absent headers read as empty strings
func TestDecode_MissingHeaders(t *testing.T) {
	msg, err := DecodeFile("testdata/missing-headers.eml")

	require.NoError(t, err, "Should decode email with missing headers without error")
	h := msg.Header()
	assert.Equal(t, "Missing Headers Test", h.Get("Subject"))
	assert.Equal(t, "", h.Get("Date"))
	assert.Equal(t, "", h.Get("To"))
	assert.Contains(t, msg.Root.Body, "missing some headers")
}

// TestDecode_Malformed tests that unparseable header sections are rejected
func TestDecode_Malformed(t *testing.T) {
	_, err := DecodeFile("testdata/malformed.eml")

	require.Error(t, err)
	assert.True(t, IsMalformed(err), "Should be a MalformedMessageError, got %T", err)
}

// TestDecode_Empty tests that empty input is malformed
func TestDecode_Empty(t *testing.T) {
	for _, raw := range []string{"", "   \r\n\n"} {
		_, err := Decode([]byte(raw))
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
		assert.True(t, errors.Is(err, ErrEmptyMessage))
	}
}

// TestDecode_InvalidFile tests error handling for non-existent files
func TestDecode_InvalidFile(t *testing.T) {
	_, err := DecodeFile("testdata/does-not-exist.eml")

	assert.Error(t, err, "Should return error for non-existent file")
	assert.Contains(t, err.Error(), "failed to open file")
	assert.False(t, IsMalformed(err))
}

// TestDecode_UnknownCharset tests the best-effort fallback for unknown charsets
func TestDecode_UnknownCharset(t *testing.T) {
	raw := "From: sender@example.com\n" +
		"Subject: Odd charset\n" +
		"Content-Type: text/plain; charset=x-no-such-charset\n\n" +
		"plain ascii still readable\n"

	msg, err := Decode([]byte(raw))
	require.NoError(t, err, "Unknown charsets must not fail the message")

	require.Len(t, msg.Warnings, 1)
	var encErr *UnsupportedEncodingError
	require.True(t, errors.As(msg.Warnings[0], &encErr))
	assert.Equal(t, "1", encErr.Part)
	assert.Contains(t, msg.Root.Body, "plain ascii still readable")
}

// TestDecode_InvalidUTF8IsReplaced tests that undecodable bytes never leak through
func TestDecode_InvalidUTF8IsReplaced(t *testing.T) {
	raw := "Subject: Bytes\nContent-Type: text/plain; charset=utf-8\n\nok \xff\xfe end\n"

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Contains(t, msg.Root.Body, "ok \uFFFD")
	assert.Contains(t, msg.Root.Body, "end")
}

// TestDecode_QuotedPrintableHTML tests transfer decoding of an HTML part
func TestDecode_QuotedPrintableHTML(t *testing.T) {
	raw := "Subject: QP\n" +
		"Content-Type: text/html; charset=utf-8\n" +
		"Content-Transfer-Encoding: quoted-printable\n\n" +
		"<p>Gewicht: 12=C2=A0kg</p>=\n<p>next</p>\n"

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, MediaHTML, msg.Root.MediaType)
	assert.Contains(t, msg.Root.Body, "Gewicht: 12\u00a0kg</p><p>next</p>")
}

// TestDecode_ForwardedMessage tests that message/rfc822 parts become containers
func TestDecode_ForwardedMessage(t *testing.T) {
	raw := "Subject: Fwd: booking\n" +
		"Content-Type: multipart/mixed; boundary=b1\n\n" +
		"--b1\n" +
		"Content-Type: text/plain\n\n" +
		"see below\n" +
		"--b1\n" +
		"Content-Type: message/rfc822\n" +
		"Content-Disposition: attachment; filename=\"original.eml\"\n\n" +
		"Subject: booking\n" +
		"Content-Type: text/plain\n\n" +
		"inner body\n" +
		"--b1--\n"

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, msg.Root.Children, 2)

	fwd := msg.Root.Children[1]
	assert.Equal(t, "message/rfc822", fwd.ContentType)
	assert.Equal(t, "original.eml", fwd.Filename)
	require.Len(t, fwd.Children, 1)
	assert.Equal(t, "booking", fwd.Children[0].Header.Get("Subject"))
	assert.Contains(t, fwd.Children[0].Body, "inner body")
}

// TestDecode_FilenameFallsBackToContentTypeName tests the name parameter fallback
func TestDecode_FilenameFallsBackToContentTypeName(t *testing.T) {
	raw := "Subject: att\n" +
		"Content-Type: multipart/mixed; boundary=zz\n\n" +
		"--zz\n" +
		"Content-Type: image/png; name=\"=?UTF-8?Q?pl=C3=A1n.png?=\"\n\n" +
		"xxxx\n" +
		"--zz--\n"

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, msg.Root.Children, 1)
	assert.Equal(t, "plán.png", msg.Root.Children[0].Filename)
}

// TestNodeWalk tests document-order traversal
func TestNodeWalk(t *testing.T) {
	tree := &Node{Children: []*Node{
		{Body: "a"},
		{Children: []*Node{{Body: "b"}, {Body: "c"}}},
		{Body: "d"},
	}}

	var seen []string
	tree.Walk(func(n *Node) {
		if !n.IsContainer() {
			seen = append(seen, n.Body)
		}
	})
	assert.Equal(t, []string{"a", "b", "c", "d"}, seen)
}

// TestDecodeMIMEWord tests the MIME word decoder function
func TestDecodeMIMEWord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "UTF-8 Quoted-Printable",
			input:    "=?UTF-8?Q?Invitaci=C3=B3n?=",
			expected: "Invitación",
		},
		{
			name:     "UTF-8 Base64",
			input:    "=?UTF-8?B?SW52aXRhY2nDs24=?=",
			expected: "Invitación",
		},
		{
			name:     "ISO-8859-1 Quoted-Printable",
			input:    "=?ISO-8859-1?Q?Caf=E9?=",
			expected: "Café",
		},
		{
			name:     "Plain text (no encoding)",
			input:    "Simple Subject",
			expected: "Simple Subject",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeMIMEWord(tt.input))
		})
	}
}
