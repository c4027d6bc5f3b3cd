package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felo/cargo-eml-prompts/internal/db"
	"github.com/felo/cargo-eml-prompts/internal/handlers"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored records and runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			a.logger.Info("database opened", "path", a.cfg.DBPath)

			h := handlers.New(database, a.cfg, a.logger)

			srv := &http.Server{
				Addr:         a.cfg.Address(),
				Handler:      h.Routes(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 5 * time.Minute, // SSE progress streams stay open for a whole run
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting server", "url", a.cfg.URL())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			if a.cfg.Open {
				time.Sleep(500 * time.Millisecond) // Give server time to start
				if err := openBrowser(a.cfg.URL()); err != nil {
					a.logger.Warn("failed to open browser", "url", a.cfg.URL(), "error", err)
				}
			}

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			a.logger.Info("shutting down gracefully")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("server shutdown error", "error", err)
			}
			h.Close()

			a.logger.Info("server stopped")
			return nil
		},
	}
}

// openBrowser opens the default browser to the specified URL
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
