package handlers

import (
	"log/slog"
	"net/http"
)

// ReloadResponse names what a ReloadHandler reloaded.
type ReloadResponse struct {
	Reloaded string `json:"reloaded"`
}

// ReloadHandler reloads one component of the server, such as the
// configuration or the run history, from disk.
type ReloadHandler struct {
	logger   *slog.Logger
	target   string
	reloader Reloader
}

// NewReloadHandler creates a ReloadHandler. target is used in logs and
// responses, e.g. "configuration".
func NewReloadHandler(logger *slog.Logger, target string, reloader Reloader) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger.With("target", target),
		target:   target,
		reloader: reloader,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading")

	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload %s: %v", h.target, err)
		return
	}

	h.logger.Info("reloaded")
	writeJSON(w, http.StatusOK, ReloadResponse{Reloaded: h.target})
}
