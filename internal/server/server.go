// Package server wires configuration, the rate gate, the upstream client
// and the HTTP handlers into one listener with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findcloutintern/kimigate/internal/classify"
	"github.com/findcloutintern/kimigate/internal/config"
	"github.com/findcloutintern/kimigate/internal/handlers"
	"github.com/findcloutintern/kimigate/internal/middleware"
	"github.com/findcloutintern/kimigate/internal/ratelimit"
	"github.com/findcloutintern/kimigate/internal/upstream"
)

type Server struct {
	config *config.Manager
	logger *slog.Logger
	server *http.Server
}

func New(configManager *config.Manager, logger *slog.Logger) *Server {
	return &Server{
		config: configManager,
		logger: logger,
	}
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if cfg.APIKey == "" {
		s.logger.Warn("no upstream API key configured, set NVIDIA_NIM_API_KEY")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	mux := s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	s.logger.Info("Starting server", "address", addr, "model", cfg.Model)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes(cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	client := upstream.NewClient(cfg.BaseURL, cfg.APIKey, s.logger)
	gate := ratelimit.NewGate(cfg.RateLimit, time.Duration(cfg.RateWindow)*time.Second, s.logger)
	classifier := classify.NewClassifier(cfg.Model, classify.Options{
		FastPrefixDetection:    cfg.FastPrefixDetection,
		SkipQuotaCheck:         cfg.SkipQuotaCheck,
		SkipTitleGeneration:    cfg.SkipTitleGeneration,
		SkipSuggestionMode:     cfg.SkipSuggestionMode,
		SkipFilepathExtraction: cfg.SkipFilepathExtraction,
	}, s.logger)

	messagesHandler := handlers.NewMessagesHandler(s.config, client, gate, classifier, s.logger)
	tokenCountHandler := handlers.NewTokenCountHandler(s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)
	statusHandler := handlers.NewStatusHandler(s.config, s.logger)

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)

	mux.Handle("POST /v1/messages", middlewareSet.DefaultChain().Handler(messagesHandler))
	mux.Handle("POST /v1/messages/count_tokens", middlewareSet.DefaultChain().Handler(tokenCountHandler))
	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/", middlewareSet.DefaultChain().Handler(statusHandler))

	return mux
}
