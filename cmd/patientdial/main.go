package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/patientdial/patientdial/internal/api"
	"github.com/patientdial/patientdial/internal/call"
	"github.com/patientdial/patientdial/internal/config"
	"github.com/patientdial/patientdial/internal/database"
	"github.com/patientdial/patientdial/internal/dialog"
	"github.com/patientdial/patientdial/internal/metrics"
	"github.com/patientdial/patientdial/internal/recording"
	"github.com/patientdial/patientdial/internal/scenario"
	"github.com/patientdial/patientdial/internal/speech"
	"github.com/patientdial/patientdial/internal/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("starting patientdial",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"model", cfg.OpenAIModel,
		"max_turns", cfg.MaxTurns,
	)
	if cfg.PublicBaseURL == "" {
		slog.Warn("no public base url configured, record callbacks will use relative urls")
	}

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	records := database.NewCallRecordRepository(db)

	// Scenario catalog for new calls.
	scenarios, err := scenario.Load(cfg.ScenarioFile)
	if err != nil {
		slog.Error("failed to load scenario catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("scenario catalog loaded", "scenarios", scenarios.Len())

	// Call capabilities: recording fetch, transcription, utterance
	// generation, transcript persistence.
	recordingsDir := filepath.Join(cfg.DataDir, "recordings")
	fetcher, err := recording.NewFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, recordingsDir, logger)
	if err != nil {
		slog.Error("failed to create recording fetcher", "error", err)
		os.Exit(1)
	}
	transcriber := speech.NewTranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.CapabilityTimeout)
	generator := dialog.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Temperature, cfg.CapabilityTimeout)
	transcripts, err := transcript.NewWriter(filepath.Join(cfg.DataDir, "transcripts"))
	if err != nil {
		slog.Error("failed to create transcript writer", "error", err)
		os.Exit(1)
	}

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	recording.StartRetentionTicker(appCtx, recordingsDir, cfg.RecordingMaxAge, time.Hour, logger)

	registry := call.NewRegistry()
	m := metrics.New(registry, records, time.Now())

	handlerAPI := api.NewServer(cfg, registry, scenarios, fetcher, transcriber, generator, transcripts, records, m, logger)
	defer handlerAPI.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handlerAPI,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout. In-flight webhook callbacks finish;
	// unflushed sessions are lost, which the provider's terminal status
	// retry makes survivable.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("patientdial stopped")
}
