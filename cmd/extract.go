package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/db"
	"github.com/felo/cargo-eml-prompts/internal/prompt"
)

func newExtractCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [dir]",
		Short: "Convert every .eml file in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.InputDir = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("extracting", "input", a.cfg.InputDir, "recursive", a.cfg.Recursive, "workers", a.cfg.Workers)
			res, err := a.newRunner().Run(ctx, a.cfg.InputDir)
			if err != nil {
				return err
			}

			return a.finish(ctx, cmd, res, a.cfg.ResolvedOutputDir(), a.cfg.InputDir)
		},
	}
}

func newMboxCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mbox <file>",
		Short: "Convert every message of an mbox archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("extracting", "mbox", path, "workers", a.cfg.Workers)
			res, err := a.newRunner().RunMbox(ctx, path)
			if err != nil {
				return err
			}

			out := a.cfg.OutputDir
			if out == "" {
				out = filepath.Dir(path)
			}
			return a.finish(ctx, cmd, res, out, "")
		},
	}
}

// finish writes the output files, the optional summary and database run,
// then prints the summary. inputDir is remembered for the server when set.
func (a *app) finish(ctx context.Context, cmd *cobra.Command, res *batch.Result, outDir, inputDir string) error {
	paths, err := prompt.WriteAll(outDir, res.Records, a.cfg.SchemaVersion)
	if err != nil {
		return err
	}
	a.logger.Info("wrote output files", "dir", outDir)

	if a.cfg.SummaryPath != "" {
		if err := batch.WriteSummary(a.cfg.SummaryPath, res); err != nil {
			return err
		}
		a.logger.Info("wrote summary", "path", a.cfg.SummaryPath)
	}

	if a.cfg.Save {
		if err := a.save(ctx, res, inputDir); err != nil {
			return err
		}
	}

	renderSummary(cmd.OutOrStdout(), res, paths)
	return nil
}

func (a *app) save(ctx context.Context, res *batch.Result, inputDir string) error {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SaveRun(ctx, res); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if inputDir != "" {
		abs, err := filepath.Abs(inputDir)
		if err != nil {
			abs = inputDir
		}
		if err := database.SetSetting(ctx, "input_dir", abs); err != nil {
			return err
		}
	}
	a.logger.Info("saved run", "run", res.RunID, "db", a.cfg.DBPath)
	return nil
}
