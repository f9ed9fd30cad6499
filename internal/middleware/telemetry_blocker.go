package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// TelemetryBlockerMiddleware swallows the telemetry and metrics calls agent
// clients fire at the gateway when it is configured as their API base.
// Answering them locally keeps the client happy without leaking usage data.
type TelemetryBlockerMiddleware struct {
	logger *slog.Logger
}

func NewTelemetryBlockerMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	tbm := &TelemetryBlockerMiddleware{
		logger: logger,
	}

	return tbm.middleware
}

func (tbm *TelemetryBlockerMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tbm.isTelemetryRequest(r.URL.Path) {
			tbm.logger.Debug("blocked telemetry request", "path", r.URL.Path)
			tbm.sendTelemetryResponse(w)

			return
		}

		if tbm.isMetricsRequest(r.URL.Path) {
			tbm.logger.Debug("blocked metrics request", "path", r.URL.Path)
			tbm.sendMetricsResponse(w)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (tbm *TelemetryBlockerMiddleware) sendTelemetryResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"success":true}`))
}

func (tbm *TelemetryBlockerMiddleware) sendMetricsResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"accepted_count":0,"rejected_count":0}`))
}

func (tbm *TelemetryBlockerMiddleware) isTelemetryRequest(path string) bool {
	telemetryPaths := []string{
		"/v1/initialize",
		"/v1/log_event",
		"/v1/rgstr",
		"/statsig",
		"/telemetry",
		"/analytics",
	}

	for _, telemetryPath := range telemetryPaths {
		if strings.HasPrefix(path, telemetryPath) {
			return true
		}
	}

	return false
}

func (tbm *TelemetryBlockerMiddleware) isMetricsRequest(path string) bool {
	return strings.HasSuffix(path, "/metrics")
}
