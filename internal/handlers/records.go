package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/felo/cargo-eml-prompts/internal/db"
	"github.com/felo/cargo-eml-prompts/internal/prompt"
)

// ListRecords lists stored records, optionally for a single run
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter := db.RecordFilter{
		RunID:  r.URL.Query().Get("run"),
		Limit:  queryInt(r, "limit", 50, 500),
		Offset: queryInt(r, "offset", 0, 1<<30),
	}

	records, err := h.db.ListRecords(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list records", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load records")
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

// ViewRecord returns a single record
func (h *Handlers) ViewRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// RecordPrompt returns the extraction prompt rendered for a record
func (h *Handlers) RecordPrompt(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	text, err := prompt.Render(rec.EmailRecord)
	if err != nil {
		h.logger.Error("failed to render prompt", "id", rec.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to render prompt")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

// loadRecord resolves the {id} URL parameter, writing the error response
// itself when the record cannot be returned
func (h *Handlers) loadRecord(w http.ResponseWriter, r *http.Request) (*db.StoredRecord, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid record ID")
		return nil, false
	}

	rec, err := h.db.GetRecord(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load record", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load record")
		return nil, false
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "Record not found")
		return nil, false
	}
	return rec, true
}
