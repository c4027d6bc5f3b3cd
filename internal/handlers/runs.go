package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felo/cargo-eml-prompts/internal/batch"
	"github.com/felo/cargo-eml-prompts/internal/prompt"
)

// RunStatus is a snapshot of the current or last run
type RunStatus struct {
	Running    bool      `json:"running"`
	Input      string    `json:"input,omitempty"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	File       string    `json:"file,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	LastUpdate time.Time `json:"last_update"`
}

// ProgressEvent represents a progress update event
type ProgressEvent struct {
	Type string    `json:"type"` // "progress", "complete", "error"
	Data RunStatus `json:"data"`
}

// runState tracks the single run the server allows at a time and the SSE
// clients following it
type runState struct {
	mu      sync.RWMutex
	status  RunStatus
	clients []chan ProgressEvent
}

func newRunState() *runState {
	return &runState{}
}

// begin marks a run as started. It reports false when one is already running.
func (s *runState) begin(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return false
	}
	s.status = RunStatus{Running: true, Input: input, LastUpdate: time.Now()}
	return true
}

func (s *runState) progress(current, total int, filename string) {
	s.mu.Lock()
	s.status.Current = current
	s.status.Total = total
	s.status.File = filename
	s.status.LastUpdate = time.Now()
	s.mu.Unlock()

	s.broadcast("progress")
}

func (s *runState) finish(res *batch.Result, err error) {
	s.mu.Lock()
	s.status.Running = false
	s.status.LastUpdate = time.Now()
	if res != nil {
		s.status.RunID = res.RunID
		s.status.Total = res.Total
		s.status.Processed = res.Processed
		s.status.Skipped = len(res.Skipped)
	}
	event := "complete"
	if err != nil {
		s.status.Error = err.Error()
		event = "error"
	}
	s.mu.Unlock()

	s.broadcast(event)
}

func (s *runState) snapshot() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *runState) subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 10)
	s.mu.Lock()
	s.clients = append(s.clients, ch)
	s.mu.Unlock()
	return ch
}

func (s *runState) unsubscribe(ch chan ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.clients {
		if c == ch {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
}

// broadcast sends the current status to every client without blocking
func (s *runState) broadcast(eventType string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event := ProgressEvent{Type: eventType, Data: s.status}
	for _, client := range s.clients {
		select {
		case client <- event:
		default:
			// Client channel full, skip
		}
	}
}

// ListRuns lists batch runs, most recent first
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.ListRuns(r.Context(), queryInt(r, "limit", 50, 500))
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load runs")
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// ViewRun returns a run with the files it skipped
func (h *Handlers) ViewRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.db.GetRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load run", "run", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	skipped, err := h.db.GetSkipped(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load skipped files", "run", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":     run,
		"skipped": skipped,
		"summary": fmt.Sprintf("Processed %d/%d emails", run.Processed, run.Total),
	})
}

// DeleteRun removes a run and its records
func (h *Handlers) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.db.GetRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load run", "run", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	if err := h.db.DeleteRun(r.Context(), id); err != nil {
		h.logger.Error("failed to delete run", "run", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartRun converts the configured input directory in the background
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	dir := h.inputDir(r)
	if dir == "" {
		h.writeError(w, http.StatusBadRequest, "No input directory configured")
		return
	}

	if !h.runs.begin(dir) {
		h.writeError(w, http.StatusConflict, "Run already in progress")
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		res, err := h.execute(dir)
		if err != nil {
			h.logger.Error("run failed", "input", dir, "error", err)
		}
		h.runs.finish(res, err)
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "input": dir})
}

// execute runs the batch, stores it and writes the output files when an
// output directory is configured
func (h *Handlers) execute(dir string) (*batch.Result, error) {
	runner := batch.New(h.logger).
		WithConcurrency(h.cfg.Workers).
		WithRecursive(h.cfg.Recursive).
		WithFileTimeout(h.cfg.FileTimeout)

	res, err := runner.RunWithProgress(h.ctx, dir, h.runs.progress)
	if err != nil {
		return res, err
	}

	if err := h.db.SaveRun(h.ctx, res); err != nil {
		return res, err
	}
	if err := h.db.SetSetting(h.ctx, "input_dir", dir); err != nil {
		return res, err
	}

	if h.cfg.OutputDir != "" {
		paths, err := prompt.WriteAll(h.cfg.OutputDir, res.Records, h.cfg.SchemaVersion)
		if err != nil {
			return res, err
		}
		h.logger.Info("wrote output files", "records", paths.Records, "prompts", paths.Prompts, "jsonl", paths.JSONL)
	}
	return res, nil
}

// inputDir is the configured input directory, or the one used by the last run
func (h *Handlers) inputDir(r *http.Request) string {
	if h.cfg.InputDir != "" {
		return h.cfg.InputDir
	}
	dir, err := h.db.GetSetting(r.Context(), "input_dir")
	if err != nil {
		h.logger.Warn("failed to read input_dir setting", "error", err)
		return ""
	}
	return dir
}

// CurrentRun returns the state of the current or last run
func (h *Handlers) CurrentRun(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.runs.snapshot())
}

// RunProgressSSE streams run progress as Server-Sent Events
func (h *Handlers) RunProgressSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	clientChan := h.runs.subscribe()
	defer h.runs.unsubscribe(clientChan)

	// Send initial state if a run is in progress
	if status := h.runs.snapshot(); status.Running {
		h.sendSSE(w, flusher, "progress", status)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-clientChan:
			h.sendSSE(w, flusher, event.Type, event.Data)

			// Close connection after complete or error
			if event.Type == "complete" || event.Type == "error" {
				return
			}
		}
	}
}

// sendSSE sends an SSE message to the client
func (h *Handlers) sendSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
