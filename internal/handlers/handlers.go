// Package handlers serves stored records and batch runs as a JSON API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felo/cargo-eml-prompts/internal/config"
	"github.com/felo/cargo-eml-prompts/internal/db"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	db     *db.DB
	cfg    *config.Config
	logger *slog.Logger
	runs   *runState

	// Background runs stop when ctx is canceled
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Handlers instance
func New(database *db.DB, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		db:     database,
		cfg:    cfg,
		logger: logger,
		runs:   newRunState(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Routes returns the API router
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/", h.Index)
	r.Get("/records", h.ListRecords)
	r.Get("/records/{id}", h.ViewRecord)
	r.Get("/records/{id}/prompt", h.RecordPrompt)
	r.Get("/search", h.Search)

	r.Get("/runs", h.ListRuns)
	r.Post("/runs", h.StartRun)
	r.Get("/runs/status", h.CurrentRun)
	r.Get("/runs/progress", h.RunProgressSSE)
	r.Get("/runs/{id}", h.ViewRun)
	r.Delete("/runs/{id}", h.DeleteRun)

	return r
}

// Close cancels a run in progress and waits for it to finish
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

// Wait blocks until no run started by StartRun is in progress
func (h *Handlers) Wait() {
	h.wg.Wait()
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt reads a positive integer query parameter, clamped to max
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
