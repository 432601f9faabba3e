// Package api receives the telephony provider's webhooks and dispatches
// them to the call session registry and state machine.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/patientdial/patientdial/internal/api/middleware"
	"github.com/patientdial/patientdial/internal/call"
	"github.com/patientdial/patientdial/internal/config"
	"github.com/patientdial/patientdial/internal/database"
	"github.com/patientdial/patientdial/internal/metrics"
	"github.com/patientdial/patientdial/internal/scenario"
)

// Transcriber converts downloaded call audio to text. An empty transcript
// is a valid result, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Generator produces the synthetic patient's next spoken line.
type Generator interface {
	NextUtterance(ctx context.Context, scenario string, history []string) (string, error)
}

// TranscriptWriter persists a finished transcript exactly once.
type TranscriptWriter interface {
	Write(callSID string, lines []string) (string, error)
}

// RecordingFetcher downloads provider recording artifacts.
type RecordingFetcher interface {
	FetchTurn(ctx context.Context, callSID, recordingSID, recordingURL string) (string, error)
	Archive(ctx context.Context, callSID, recordingSID, recordingURL string) (string, error)
	Cleanup(path string)
}

// Server holds the webhook dispatcher's dependencies and the chi router.
type Server struct {
	router *chi.Mux
	cfg    *config.Config

	registry    *call.Registry
	scenarios   *scenario.Catalog
	fetcher     RecordingFetcher
	transcriber Transcriber
	generator   Generator
	transcripts TranscriptWriter
	records     database.CallRecordRepository // may be nil; call records are best effort
	metrics     *metrics.Metrics

	limiter *middleware.IPRateLimiter
	logger  *slog.Logger
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(
	cfg *config.Config,
	registry *call.Registry,
	scenarios *scenario.Catalog,
	fetcher RecordingFetcher,
	transcriber Transcriber,
	generator Generator,
	transcripts TranscriptWriter,
	records database.CallRecordRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		registry:    registry,
		scenarios:   scenarios,
		fetcher:     fetcher,
		transcriber: transcriber,
		generator:   generator,
		transcripts: transcripts,
		records:     records,
		metrics:     m,
		limiter:     middleware.NewIPRateLimiter(middleware.NewRateLimitConfig(cfg.WebhookRate, cfg.WebhookBurst)),
		logger:      logger.With("component", "dispatcher"),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background rate-limiter cleanup.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Provider webhooks.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.limiter))
		r.Post("/voice", s.handleVoice)
		r.Post("/call-recording", s.handleCallRecording)
		r.Post("/call-status", s.handleCallStatus)
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.registry.Len(),
	})
}
