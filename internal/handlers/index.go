package handlers

import (
	"net/http"

	"github.com/felo/cargo-eml-prompts/internal/scanner"
)

// Index reports record and run counts, the number of .eml files waiting in
// the input directory and the most recent run
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	count, err := h.db.CountRecords(r.Context())
	if err != nil {
		h.logger.Error("failed to count records", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to get record count")
		return
	}

	runs, err := h.db.ListRuns(r.Context(), 1)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load runs")
		return
	}

	dir := h.inputDir(r)
	pending := 0
	if dir != "" {
		pending, err = scanner.NewScanner(dir).WithRecursive(h.cfg.Recursive).CountEMLFiles()
		if err != nil {
			h.logger.Warn("failed to count input files", "dir", dir, "error", err)
		}
	}

	data := map[string]interface{}{
		"total_records": count,
		"input_dir":     dir,
		"input_files":   pending,
		"last_run":      nil,
	}
	if len(runs) > 0 {
		data["last_run"] = runs[0]
	}

	h.writeJSON(w, http.StatusOK, data)
}
