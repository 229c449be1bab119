package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiao901202/EdgeMeet/internal/audio"
	"github.com/xiao901202/EdgeMeet/internal/config"
	"github.com/xiao901202/EdgeMeet/internal/metrics"
	"github.com/xiao901202/EdgeMeet/internal/pipeline"
	"github.com/xiao901202/EdgeMeet/internal/registry"
	"github.com/xiao901202/EdgeMeet/internal/segment"
	"github.com/xiao901202/EdgeMeet/internal/server"
	"github.com/xiao901202/EdgeMeet/internal/summarize"
	"github.com/xiao901202/EdgeMeet/internal/transcript"
	"github.com/xiao901202/EdgeMeet/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "edgemeet"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("upload_dir", cfg.Storage.UploadDir),
		slog.Float64("chunk_seconds", cfg.Audio.ChunkSeconds),
		slog.Float64("overlap_seconds", cfg.Audio.OverlapSeconds),
		slog.Float64("volume_threshold", cfg.Audio.VolumeThreshold),
		slog.Int("summary_batch_size", cfg.Summary.BatchSize),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("summarization_endpoint", cfg.Summarization.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0755); err != nil {
		logger.Error("Failed to create upload directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Open the recording catalog
	catalog, err := registry.Open(cfg.Storage.RegistryPath)
	if err != nil {
		logger.Error("Failed to open recording catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer catalog.Close()

	// Initialize external API clients
	transcriber, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		Language:      cfg.Transcription.Language,
		Model:         cfg.Transcription.Model,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	summarizer, err := summarize.NewClient(summarize.Config{
		Endpoint: cfg.Summarization.Endpoint,
		Model:    cfg.Summarization.Model,
		Timeout:  cfg.Summarization.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create summarization client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Assemble the processing pipeline
	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		Store:       transcript.NewStore(cfg.Storage.UploadDir),
		Registry:    catalog,
		Normalizer:  audio.NewNormalizer(os.TempDir()),
		Transcriber: transcriber,
		Batcher:     summarize.NewBatcher(summarizer, cfg.Summary.BatchSize, logger),
		Sessions:    pipeline.NewSessionStore(),
		Windowing: segment.Windowing{
			ChunkSeconds:   cfg.Audio.ChunkSeconds,
			OverlapSeconds: cfg.Audio.OverlapSeconds,
		},
		Gate:    audio.Gate{Threshold: cfg.Audio.VolumeThreshold},
		Metrics: appMetrics,
		Logger:  logger,
	})
	logger.Info("Pipeline initialized")

	// Initialize HTTP API server
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:    cfg.HTTP.Port,
		Address: cfg.HTTP.Address,
	}, logger, orchestrator, catalog, appMetrics, cfg.Storage.UploadDir)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Wait for in-flight transcription requests
	if err := transcriber.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	stats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
