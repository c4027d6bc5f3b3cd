package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/prompt"
	"github.com/felo/cargo-eml-prompts/internal/record"
)

const htmlEML = "From: ops@forwarder.example\r\n" +
	"To: cargo@airline.example\r\n" +
	"Subject: Booking\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n\r\n" +
	"<p>Please book</p><table><tr><td>AWB</td><td>Pieces</td></tr><tr><td>176-12345675</td><td>3</td></tr></table>\r\n"

// runRoot executes the command tree with args and returns its stdout
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeInput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "booking.eml"), []byte(htmlEML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.eml"), nil, 0644))
	return dir
}

func TestExtract(t *testing.T) {
	input := writeInput(t)
	summary := filepath.Join(t.TempDir(), "summary.yaml")

	out, err := runRoot(t, "extract", input, "--summary", summary, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Processed 1/2 emails")
	assert.Contains(t, out, "empty.eml")
	assert.FileExists(t, summary)

	data, err := os.ReadFile(filepath.Join(input, prompt.RecordsFile))
	require.NoError(t, err)
	var records []record.EmailRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "booking.eml", records[0].Filename)
	assert.Equal(t, "Please book\nAWB\nPieces\n176-12345675\n3\nAWB, Pieces\n176-12345675, 3", records[0].Body)

	assert.FileExists(t, filepath.Join(input, prompt.PromptsFile))
	assert.FileExists(t, filepath.Join(input, prompt.JSONLFile))
}

func TestRoot_DefaultsToExtract(t *testing.T) {
	input := writeInput(t)
	output := t.TempDir()

	out, err := runRoot(t, input, "-o", output, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1/2 emails")
	assert.FileExists(t, filepath.Join(output, prompt.RecordsFile))
	assert.NoFileExists(t, filepath.Join(input, prompt.RecordsFile))
}

func TestExtract_MissingDirectory(t *testing.T) {
	_, err := runRoot(t, "extract", filepath.Join(t.TempDir(), "missing"), "--log-level", "error")
	assert.Error(t, err)
}

func TestExtract_InvalidConfig(t *testing.T) {
	_, err := runRoot(t, "extract", t.TempDir(), "--workers", "0")
	assert.Error(t, err)
}

func TestExtract_SaveAndSearch(t *testing.T) {
	input := writeInput(t)
	dbPath := filepath.Join(t.TempDir(), "records.db")

	_, err := runRoot(t, "extract", input, "--save", "--db", dbPath, "--log-level", "error")
	require.NoError(t, err)

	out, err := runRoot(t, "search", "176", "--db", dbPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "booking.eml")
	assert.Contains(t, out, "Booking")

	out, err = runRoot(t, "search", "nothing-like-this", "--db", dbPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "No records found")
}

func TestMbox(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cargo.mbox")
	content := "From ops@forwarder.example Mon Jan  1 10:00:00 2024\n" +
		strings.ReplaceAll(htmlEML, "\r\n", "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := runRoot(t, "mbox", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1/1 emails")

	data, err := os.ReadFile(filepath.Join(dir, prompt.RecordsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"filename": "cargo.mbox#1"`)
}

func TestRenderSummary(t *testing.T) {
	res := &batch.Result{
		Total:     3,
		Processed: 1,
		Bytes:     2048,
		Skipped: []batch.Skipped{
			{Filename: "a.eml", Reason: "malformed message: empty message"},
			{Filename: "b.eml", Reason: "malformed message: bad header"},
		},
	}

	var out bytes.Buffer
	renderSummary(&out, res, prompt.Paths{Records: "/out/emails.json", Prompts: "/out/email_prompts.json", JSONL: "/out/prompts_golden.jsonl"})

	text := out.String()
	assert.Contains(t, text, "Processed 1/3 emails")
	assert.Contains(t, text, "a.eml")
	assert.Contains(t, text, "b.eml")
	assert.Contains(t, text, "2.0 kB")
	assert.Contains(t, text, "/out/prompts_golden.jsonl")
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "plain text here", highlight("plain\ntext   here"))
	assert.Contains(t, highlight("a <mark>b</mark> c"), "b")
	assert.NotContains(t, highlight("a <mark>b</mark> c"), "<mark>")
	assert.Equal(t, "broken <mark>tag", highlight("broken <mark>tag"))
}
