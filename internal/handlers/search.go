package handlers

import (
	"net/http"
)

// Search handles full-text search requests
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := h.db.SearchRecords(r.Context(), query, queryInt(r, "limit", 50, 500))
	if err != nil {
		h.logger.Error("search failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}
