package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felo/cargo-eml-prompts/internal/db"
)

var (
	nameStyle = lipgloss.NewStyle().Bold(true)
	markStyle = lipgloss.NewStyle().Reverse(true)
)

func newSearchCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over stored records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			results, err := database.SearchRecords(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No records found")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "%d  %s  %s\n", r.ID, nameStyle.Render(r.Filename), r.Subject)
				fmt.Fprintf(out, "    %s\n", highlight(r.Snippet))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	return cmd
}

// highlight replaces the snippet's <mark> tags with terminal styling and
// flattens it to one line
func highlight(snippet string) string {
	var b strings.Builder
	rest := strings.Join(strings.Fields(snippet), " ")
	for {
		start := strings.Index(rest, "<mark>")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "</mark>")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])
		b.WriteString(markStyle.Render(rest[start+len("<mark>") : start+end]))
		rest = rest[start+end+len("</mark>"):]
	}
}
