package handlers

import (
	"log/slog"
	"net/http"

	"github.com/findcloutintern/kimigate/internal/config"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler wires the health probe.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// StatusHandler serves GET /, reporting the active provider and model.
type StatusHandler struct {
	config *config.Manager
	logger *slog.Logger
}

// NewStatusHandler wires the status endpoint.
func NewStatusHandler(cfg *config.Manager, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{config: cfg, logger: logger}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErrorJSON(w, http.StatusNotFound, "not_found_error", "unknown endpoint: "+r.URL.Path)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": "nvidia_nim",
		"model":    h.config.Get().Model,
	})
}
