package handlers

import (
	"net/http"
	"strconv"
)

// HistoryHandler handles requests for the run history.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler. The optional limit query parameter
// caps the number of runs returned, most recent first.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	history := h.provider.History()
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", v)
			return
		}
		if limit < len(history) {
			history = history[:limit]
		}
	}
	writeJSON(w, http.StatusOK, history)
}

// HistoryLogsHandler handles requests for the stored record of one run,
// including the logs captured per unit.
type HistoryLogsHandler struct {
	provider HistoryProvider
}

// NewHistoryLogsHandler creates a new HistoryLogsHandler.
func NewHistoryLogsHandler(provider HistoryProvider) *HistoryLogsHandler {
	return &HistoryLogsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	record, ok := h.provider.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run %q not found", id)
		return
	}

	writeJSON(w, http.StatusOK, record)
}
