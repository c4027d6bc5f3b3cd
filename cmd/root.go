// Package cmd wires the command line: configuration, logging and the
// extract, mbox, serve and search commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/config"
)

// app carries what PersistentPreRunE resolved to the subcommands
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{stderr: os.Stderr}

	extract := newExtractCommand(a)

	rootCmd := &cobra.Command{
		Use:   "cargo-eml-prompts [dir]",
		Short: "Turn .eml messages into airline cargo extraction prompts",
		Long: "Converts every .eml file in a directory into a normalized record and writes\n" +
			"emails.json, email_prompts.json and prompts_golden.jsonl next to them.",
		Args:          extract.Args,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = setupLogger(cfg, a.stderr)
			slog.SetDefault(a.logger)
			return nil
		},
		RunE: extract.RunE,
	}
	config.RegisterFlags(rootCmd)

	rootCmd.AddCommand(extract, newMboxCommand(a), newServeCommand(a), newSearchCommand(a))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(cfg.Level())

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// newRunner builds a batch runner from the configuration
func (a *app) newRunner() *batch.Runner {
	return batch.New(a.logger).
		WithConcurrency(a.cfg.Workers).
		WithRecursive(a.cfg.Recursive).
		WithFileTimeout(a.cfg.FileTimeout)
}
