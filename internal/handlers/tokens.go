package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/findcloutintern/kimigate/internal/protocol"
	"github.com/findcloutintern/kimigate/internal/tokens"
)

// TokenCountHandler serves POST /v1/messages/count_tokens. Counts are local
// estimates; no upstream call is made.
type TokenCountHandler struct {
	logger *slog.Logger
}

// NewTokenCountHandler wires the count_tokens endpoint.
func NewTokenCountHandler(logger *slog.Logger) *TokenCountHandler {
	return &TokenCountHandler{logger: logger}
}

func (h *TokenCountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req protocol.TokenCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())

		return
	}

	writeJSON(w, http.StatusOK, protocol.TokenCountResponse{
		InputTokens: tokens.EstimateRequest(req.Messages, req.System, req.Tools),
	})
}
