package handlers

import (
	"net/http"

	"github.com/nomis52/orderflow/server/runner"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string          `json:"status"`
	State  runner.RunState `json:"state"`
}

// HealthHandler reports that the server is up and whether a run is in progress.
type HealthHandler struct {
	status RunStatusProvider
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(status RunStatusProvider) *HealthHandler {
	return &HealthHandler{status: status}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		State:  h.status.Status().State,
	})
}
