package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livecap/livecap/internal/config"
	"github.com/livecap/livecap/internal/observability"
	"github.com/livecap/livecap/internal/relay"
	"github.com/livecap/livecap/internal/room"
	"github.com/livecap/livecap/internal/stt"
	"github.com/livecap/livecap/internal/translate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_language", cfg.STTLanguage).
		Str("source_language", cfg.SourceLanguage).
		Str("target_language", cfg.TargetLanguage).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Caption relay service starting")

	// Wire dependencies explicitly; every component receives its
	// collaborators through its constructor
	registry := room.NewRegistry(cfg.SourceLanguage, cfg.TargetLanguage)
	fanout := room.NewFanout(registry, logger)
	bridge := stt.NewBridge(cfg, logger)

	openaiClient := translate.NewOpenAIClient(translate.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	})
	gateway := translate.NewGateway(openaiClient, translate.GatewayConfig{
		RetryAttempts:       cfg.TranslateRetryAttempts,
		RetryInitialBackoff: time.Duration(cfg.TranslateRetryBackoff) * time.Millisecond,
		BreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
		BreakerResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
	}, logger)

	pipeline := relay.NewCaptionPipeline(registry, gateway, fanout, logger)
	handler := relay.NewHandler(cfg, registry, bridge, pipeline, logger)

	// Create HTTP server
	mux := http.NewServeMux()

	// WebSocket endpoints
	mux.HandleFunc("/ws/stream/{room}", handler.HandleStream)
	mux.HandleFunc("/ws/view/{room}", handler.HandleView)

	// Room introspection
	mux.HandleFunc("/debug/rooms", handler.HandleDebugRooms)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint: configuration-level probes only, no paid API calls
	checks := map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("deepgram API key not configured")
			}
			return true, nil
		},
		"openai": func(ctx context.Context) (bool, error) {
			if cfg.OpenAIAPIKey == "" {
				return false, fmt.Errorf("openai API key not configured")
			}
			return true, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Idle room sweeper: rooms with no broadcaster and no viewers past
	// the TTL are removed
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := registry.EvictIdle(cfg.RoomIdleTTL); n > 0 {
					for i := 0; i < n; i++ {
						observability.RoomEvicted()
					}
					logger.Info().Int("count", n).Msg("Evicted idle rooms")
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("stream_endpoint", fmt.Sprintf("ws://localhost:%s/ws/stream/{room}", cfg.Port)).
			Str("view_endpoint", fmt.Sprintf("ws://localhost:%s/ws/view/{room}", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	stopSweeper()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
