package parser

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
	charset.RegisterEncoding("windows-1250", charmap.Windows1250)
	charset.RegisterEncoding("iso-8859-2", charmap.ISO8859_2)
}

// maxDepth bounds nesting of multipart and message/rfc822 parts
const maxDepth = 32

// DecodeFile reads and decodes an .eml file
func DecodeFile(filePath string) (*Message, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return DecodeReader(f)
}

// DecodeReader reads a whole message from r and decodes it
func DecodeReader(r io.Reader) (*Message, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}
	return Decode(buf.Bytes())
}

// Decode parses raw message bytes into a message tree. It fails with a
// *MalformedMessageError only when the header section cannot be parsed;
// unknown charsets, unknown transfer encodings and truncated multipart
// bodies are recorded in Message.Warnings instead.
func Decode(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &MalformedMessageError{Err: ErrEmptyMessage}
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil {
		return nil, &MalformedMessageError{Err: err}
	}

	d := &decoder{}
	d.check("1", err)

	return &Message{
		Root:     d.node(entity, "1", 0),
		Size:     int64(len(raw)),
		Warnings: d.warnings,
	}, nil
}

type decoder struct {
	warnings []error
}

// check records a recoverable error from go-message. Encoding problems
// become UnsupportedEncodingError, anything else is kept as-is.
func (d *decoder) check(path string, err error) {
	if err == nil {
		return
	}
	if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
		d.warnings = append(d.warnings, &UnsupportedEncodingError{Part: path, Err: err})
		return
	}
	d.warnings = append(d.warnings, fmt.Errorf("part %s: %w", path, err))
}

func (d *decoder) node(e *message.Entity, path string, depth int) *Node {
	contentType, _, err := e.Header.ContentType()
	if err != nil || contentType == "" {
		// RFC 2045 default for missing or unparseable Content-Type
		contentType = "text/plain"
	}
	contentType = strings.ToLower(contentType)

	n := &Node{
		Header:      decodeHeader(&e.Header),
		ContentType: contentType,
		MediaType:   classify(contentType),
		Filename:    partFilename(&e.Header),
	}

	if depth >= maxDepth {
		d.warnings = append(d.warnings, fmt.Errorf("part %s: nesting deeper than %d parts ignored", path, maxDepth))
		return n
	}

	if mr := e.MultipartReader(); mr != nil {
		n.MediaType = MediaOther
		for i := 1; ; i++ {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			childPath := path + "." + strconv.Itoa(i)
			if part == nil {
				// Structural error: keep the parts read so far
				d.check(childPath, err)
				break
			}
			d.check(childPath, err)
			n.Children = append(n.Children, d.node(part, childPath, depth+1))
		}
		return n
	}

	if contentType == "message/rfc822" {
		inner, err := message.Read(e.Body)
		if inner != nil {
			d.check(path+".1", err)
			n.Children = []*Node{d.node(inner, path+".1", depth+1)}
		} else {
			d.check(path, err)
		}
		return n
	}

	if n.MediaType == MediaOther {
		// Attachment payloads are never decoded
		return n
	}

	body, err := io.ReadAll(e.Body)
	d.check(path, err)
	n.Body = strings.ToValidUTF8(string(body), "\uFFFD")
	return n
}

func classify(contentType string) MediaType {
	switch contentType {
	case "text/plain":
		return MediaPlain
	case "text/html":
		return MediaHTML
	default:
		return MediaOther
	}
}

// decodeHeader copies every header field, keeping the first value of
// repeated fields, unfolded and with RFC 2047 words decoded
func decodeHeader(h *message.Header) Header {
	out := make(Header, h.Len())
	fields := h.Fields()
	for fields.Next() {
		key := textproto.CanonicalMIMEHeaderKey(fields.Key())
		if _, seen := out[key]; seen {
			continue
		}
		value, err := h.Text(key)
		if err != nil {
			value = decodeMIMEWord(h.Get(key))
		}
		out[key] = strings.TrimSpace(unfold(value))
	}
	return out
}

// partFilename returns the disposition filename of a part, falling back to
// the Content-Type name parameter
func partFilename(h *message.Header) string {
	if _, params, err := h.ContentDisposition(); err == nil {
		if name := params["filename"]; name != "" {
			return decodeMIMEWord(strings.TrimSpace(name))
		}
	}
	if _, params, err := h.ContentType(); err == nil {
		if name := params["name"]; name != "" {
			return decodeMIMEWord(strings.TrimSpace(name))
		}
	}
	return ""
}

// unfold joins folded header lines (RFC 5322 section 2.2.3)
func unfold(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "")
	return strings.ReplaceAll(s, "\n", "")
}

// decodeMIMEWord decodes MIME-encoded words (RFC 2047)
// Example: =?UTF-8?Q?Invitaci=C3=B3n?= -> Invitación
func decodeMIMEWord(s string) string {
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		// If decoding fails, return original string
		return s
	}
	return decoded
}
