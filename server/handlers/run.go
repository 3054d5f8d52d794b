package handlers

import (
	"errors"
	"net/http"

	"github.com/nomis52/orderflow/server/runner"
)

// RunResponse is returned when a run is accepted.
type RunResponse struct {
	RunID string `json:"run_id"`
}

// RunHandler handles requests to trigger a pipeline run.
type RunHandler struct {
	runner PipelineRunner
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(r PipelineRunner) *RunHandler {
	return &RunHandler{
		runner: r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.runner.Run(runner.TriggerManual)
	switch {
	case errors.Is(err, runner.ErrRunInProgress):
		writeError(w, http.StatusConflict, "%v", err)
	case errors.Is(err, runner.ErrNoConfig):
		writeError(w, http.StatusServiceUnavailable, "%v", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "%v", err)
	default:
		writeJSON(w, http.StatusAccepted, RunResponse{RunID: id})
	}
}
