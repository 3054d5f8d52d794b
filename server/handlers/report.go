package handlers

import "net/http"

// ReportHandler returns the report of the last finished run.
type ReportHandler struct {
	provider ReportProvider
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(provider ReportProvider) *ReportHandler {
	return &ReportHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.provider.LastReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
