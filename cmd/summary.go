package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/prompt"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	skipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// renderSummary prints the count line, the skipped files and where the
// output went
func renderSummary(w io.Writer, res *batch.Result, paths prompt.Paths) {
	var b strings.Builder

	b.WriteString(titleStyle.Render(res.Summary()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s in %s\n",
		labelStyle.Render("read"),
		humanize.Bytes(uint64(res.Bytes)),
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	if len(res.Skipped) > 0 {
		b.WriteString(skipStyle.Render(fmt.Sprintf("Skipped %d:", len(res.Skipped))))
		b.WriteString("\n")
		for _, s := range res.Skipped {
			fmt.Fprintf(&b, "  %s  %s\n", s.Filename, labelStyle.Render(s.Reason))
		}
	}

	if paths.Records != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("records"), paths.Records)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("prompts"), paths.Prompts)
		fmt.Fprintf(&b, "%s %s", labelStyle.Render("jsonl  "), paths.JSONL)
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}
