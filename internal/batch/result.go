package batch

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/felo/cargo-eml-prompts/internal/record"
)

// Result is the outcome of one batch run
type Result struct {
	RunID      string               `yaml:"run_id"`
	Source     string               `yaml:"source"`
	StartedAt  time.Time            `yaml:"started_at"`
	FinishedAt time.Time            `yaml:"finished_at"`
	Total      int                  `yaml:"total"`
	Processed  int                  `yaml:"processed"`
	Bytes      int64                `yaml:"bytes"`
	Skipped    []Skipped            `yaml:"skipped"`
	Records    []record.EmailRecord `yaml:"-"`
}

// Skipped names a message that produced no record and why
type Skipped struct {
	Filename string `yaml:"filename" json:"filename" db:"filename"`
	Reason   string `yaml:"reason" json:"reason" db:"reason"`
}

// SkippedNames returns the filenames of skipped messages
func (r *Result) SkippedNames() []string {
	names := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		names[i] = s.Filename
	}
	return names
}

// Summary is the one-line count report
func (r *Result) Summary() string {
	return fmt.Sprintf("Processed %d/%d emails", r.Processed, r.Total)
}

// LogAttrs returns the counts as slog key/value pairs
func (r *Result) LogAttrs() []any {
	return []any{
		"run", r.RunID,
		"total", r.Total,
		"processed", r.Processed,
		"skipped", len(r.Skipped),
		"bytes", humanize.Bytes(uint64(r.Bytes)),
		"elapsed", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}
}

// WriteSummary writes the run counts and skipped files as YAML
func WriteSummary(path string, r *Result) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
