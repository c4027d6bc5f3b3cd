// Package prompt renders records into the cargo extraction prompt and
// writes the record, prompt and conversation JSONL files.
package prompt

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/felo/cargo-eml-prompts/internal/record"
)

// Output file names, written next to each other in the output directory
const (
	RecordsFile = "emails.json"
	PromptsFile = "email_prompts.json"
	JSONLFile   = "prompts_golden.jsonl"
)

// DefaultSchemaVersion tags each conversation line
const DefaultSchemaVersion = "bedrock-conversation-2024"

//go:embed template.txt
var templateText string

var promptTemplate = template.Must(template.New("prompt").Option("missingkey=error").Parse(templateText))

// Prompt is one filled-in prompt
type Prompt struct {
	Prompt string `json:"prompt"`
}

// Conversation is one JSONL line
type Conversation struct {
	SchemaVersion string `json:"schemaVersion"`
	Messages      []Turn `json:"messages"`
}

// Turn is a single conversation message
type Turn struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart carries the text of a turn
type ContentPart struct {
	Text string `json:"text"`
}

// Render fills the extraction prompt with one record
func Render(rec record.EmailRecord) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, rec); err != nil {
		return "", fmt.Errorf("failed to render prompt for %s: %w", rec.Filename, err)
	}
	return buf.String(), nil
}

// RenderAll renders one prompt per record, in record order
func RenderAll(recs []record.EmailRecord) ([]Prompt, error) {
	prompts := make([]Prompt, 0, len(recs))
	for _, rec := range recs {
		text, err := Render(rec)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, Prompt{Prompt: text})
	}
	return prompts, nil
}

// NewConversation wraps a prompt as a single user turn
func NewConversation(p Prompt, schemaVersion string) Conversation {
	if schemaVersion == "" {
		schemaVersion = DefaultSchemaVersion
	}
	return Conversation{
		SchemaVersion: schemaVersion,
		Messages: []Turn{{
			Role:    "user",
			Content: []ContentPart{{Text: strings.TrimSpace(p.Prompt)}},
		}},
	}
}

// WriteJSONL writes one conversation object per line
func WriteJSONL(w io.Writer, prompts []Prompt, schemaVersion string) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, p := range prompts {
		if err := enc.Encode(NewConversation(p, schemaVersion)); err != nil {
			return fmt.Errorf("failed to encode line %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// WriteJSON writes v as indented JSON, leaving non-ASCII and HTML
// characters unescaped. No newline follows the closing bracket.
func WriteJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}

// Paths are the files written by WriteAll
type Paths struct {
	Records string
	Prompts string
	JSONL   string
}

// WriteAll writes the records, prompts and conversation files into dir
func WriteAll(dir string, recs []record.EmailRecord, schemaVersion string) (Paths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	if recs == nil {
		recs = []record.EmailRecord{}
	}

	paths := Paths{
		Records: filepath.Join(dir, RecordsFile),
		Prompts: filepath.Join(dir, PromptsFile),
		JSONL:   filepath.Join(dir, JSONLFile),
	}

	if err := writeFile(paths.Records, func(w io.Writer) error { return WriteJSON(w, recs) }); err != nil {
		return Paths{}, err
	}

	prompts, err := RenderAll(recs)
	if err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Prompts, func(w io.Writer) error { return WriteJSON(w, prompts) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.JSONL, func(w io.Writer) error { return WriteJSONL(w, prompts, schemaVersion) }); err != nil {
		return Paths{}, err
	}

	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
