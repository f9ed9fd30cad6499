// Package handlers implements the HTTP endpoints of the gateway: the
// messages endpoint with its streaming and non-streaming paths, token
// counting, and the status probes.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/findcloutintern/kimigate/internal/classify"
	"github.com/findcloutintern/kimigate/internal/config"
	"github.com/findcloutintern/kimigate/internal/convert"
	"github.com/findcloutintern/kimigate/internal/protocol"
	"github.com/findcloutintern/kimigate/internal/ratelimit"
	"github.com/findcloutintern/kimigate/internal/stream"
	"github.com/findcloutintern/kimigate/internal/tokens"
	"github.com/findcloutintern/kimigate/internal/upstream"
)

// MessagesHandler serves POST /v1/messages.
type MessagesHandler struct {
	config     *config.Manager
	client     *upstream.Client
	gate       *ratelimit.Gate
	classifier *classify.Classifier
	logger     *slog.Logger
}

// NewMessagesHandler wires the messages endpoint.
func NewMessagesHandler(
	cfg *config.Manager,
	client *upstream.Client,
	gate *ratelimit.Gate,
	classifier *classify.Classifier,
	logger *slog.Logger,
) *MessagesHandler {
	return &MessagesHandler{
		config:     cfg,
		client:     client,
		gate:       gate,
		classifier: classifier,
		logger:     logger,
	}
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req protocol.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())

		return
	}

	if resp := h.classifier.Intercept(&req); resp != nil {
		writeJSON(w, http.StatusOK, resp)

		return
	}

	cfg := h.config.Get()

	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.MaxTokens
	}

	if req.Stream {
		h.streamResponse(w, r, &req, cfg)
	} else {
		h.completeResponse(w, r, &req, cfg)
	}
}

func (h *MessagesHandler) completeResponse(w http.ResponseWriter, r *http.Request, req *protocol.MessagesRequest, cfg *config.Config) {
	ctx := r.Context()

	if _, err := h.gate.Wait(ctx); err != nil {
		return
	}

	chatReq := convert.BuildChatRequest(req, cfg.Model, false)

	h.logger.Info("complete",
		"model", chatReq.Model,
		"msgs", len(chatReq.Messages),
		"tools", len(chatReq.Tools),
	)

	resp, err := h.client.Complete(ctx, chatReq)
	if err != nil {
		h.noteUpstreamError(err)
		h.writeUpstreamError(w, err)

		return
	}

	out, err := convert.Response(resp, cfg.Model)
	if err != nil {
		writeErrorJSON(w, http.StatusBadGateway, "api_error", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *MessagesHandler) streamResponse(w http.ResponseWriter, r *http.Request, req *protocol.MessagesRequest, cfg *config.Config) {
	ctx := r.Context()

	inputTokens := tokens.EstimateRequest(req.Messages, req.System, req.Tools)

	forcedWait, err := h.gate.Wait(ctx)
	if err != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var flush func()
	if flusher, ok := w.(http.Flusher); ok {
		flush = flusher.Flush
	}

	emitter := stream.NewEmitter(w, flush, protocol.NewMessageID(), cfg.Model, inputTokens)
	translator := stream.NewTranslator(emitter, h.logger)

	translator.Start(forcedWait)

	chatReq := convert.BuildChatRequest(req, cfg.Model, true)

	h.logger.Info("stream",
		"model", chatReq.Model,
		"msgs", len(chatReq.Messages),
		"tools", len(chatReq.Tools),
	)

	upstreamStream, err := h.client.Stream(ctx, chatReq)
	if err != nil {
		h.noteUpstreamError(err)
		translator.Fail(err)
		translator.Finish()

		return
	}
	defer upstreamStream.Close()

	for {
		chunk, err := upstreamStream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.noteUpstreamError(err)
				translator.Fail(err)
			}

			break
		}

		translator.Feed(chunk)
	}

	translator.Finish()
}

// noteUpstreamError engages the cool-down when the upstream reported a
// rate-limit error, so concurrent requests back off too.
func (h *MessagesHandler) noteUpstreamError(err error) {
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.Kind == upstream.KindRateLimit {
		h.gate.Block(ratelimit.DefaultCooldown)
	}
}

func (h *MessagesHandler) writeUpstreamError(w http.ResponseWriter, err error) {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		writeErrorJSON(w, ue.HTTPStatus(), ue.AnthropicType(), ue.Error())

		return
	}

	writeErrorJSON(w, http.StatusInternalServerError, "api_error", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, protocol.NewErrorResponse(errType, message))
}
