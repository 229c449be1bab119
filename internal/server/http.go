package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiao901202/EdgeMeet/internal/audio"
	"github.com/xiao901202/EdgeMeet/internal/metrics"
	"github.com/xiao901202/EdgeMeet/internal/pipeline"
	"github.com/xiao901202/EdgeMeet/internal/registry"
	"github.com/xiao901202/EdgeMeet/internal/transcript"
)

// maxUploadBytes bounds multipart request memory before spooling to disk.
const maxUploadBytes = 512 << 20

// HTTPServer provides the HTTP API for ingestion and queries
type HTTPServer struct {
	server       *http.Server
	logger       *slog.Logger
	orchestrator *pipeline.Orchestrator
	registry     *registry.Registry
	metrics      *metrics.Metrics
	uploadDir    string

	startTime time.Time
}

// HTTPServerConfig contains HTTP server configuration
type HTTPServerConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg HTTPServerConfig, logger *slog.Logger,
	orchestrator *pipeline.Orchestrator, reg *registry.Registry, m *metrics.Metrics, uploadDir string) *HTTPServer {

	h := &HTTPServer{
		logger:       logger,
		orchestrator: orchestrator,
		registry:     reg,
		metrics:      m,
		uploadDir:    uploadDir,
		startTime:    time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Ingestion endpoints
	mux.HandleFunc("/transcribe", h.withMetrics("/transcribe", h.handleTranscribe))
	mux.HandleFunc("/stream/chunk", h.withMetrics("/stream/chunk", h.handleStreamChunk))
	mux.HandleFunc("/stream/finalize", h.withMetrics("/stream/finalize", h.handleStreamFinalize))

	// Query endpoints
	mux.HandleFunc("/transcript", h.withMetrics("/transcript", h.handleTranscript))
	mux.HandleFunc("/segments/at", h.withMetrics("/segments/at", h.handleSegmentAt))
	mux.HandleFunc("/segments/range", h.withMetrics("/segments/range", h.handleSegmentsRange))
	mux.HandleFunc("/summary", h.withMetrics("/summary", h.handleSummary))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/regenerate", h.withMetrics("/regenerate", h.handleRegenerate))
	mux.HandleFunc("/records", h.withMetrics("/records", h.handleRecords))

	// Persisted artifacts (audio, transcript, summary files)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadDir))))

	// Operational endpoints
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// readUpload extracts the uploaded audio and its base name from a multipart
// request. An explicit base_name field wins over the file name.
func (h *HTTPServer) readUpload(r *http.Request) (baseName, format string, data []byte, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", nil, fmt.Errorf("invalid multipart request: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, fmt.Errorf("missing file part: %w", err)
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to read upload: %w", err)
	}

	ext := filepath.Ext(header.Filename)
	format = strings.TrimPrefix(strings.ToLower(ext), ".")
	if format == "" {
		format = "wav"
	}

	baseName = r.FormValue("base_name")
	if baseName == "" {
		baseName = strings.TrimSuffix(filepath.Base(header.Filename), ext)
	}
	if baseName == "" || strings.ContainsAny(baseName, "/\\") {
		return "", "", nil, fmt.Errorf("invalid base name %q", baseName)
	}

	return baseName, format, data, nil
}

// handleTranscribe implements POST /transcribe: upload a whole recording and
// process it to completion.
func (h *HTTPServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName, format, data, err := h.readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.IngestWholeRecording(r.Context(), baseName, format, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, result)
}

// handleStreamChunk implements POST /stream/chunk: append one live chunk.
func (h *HTTPServer) handleStreamChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName, format, data, err := h.readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil || index < 1 {
		http.Error(w, "positive integer index required", http.StatusBadRequest)
		return
	}

	seg, err := h.orchestrator.IngestStreamChunk(r.Context(), baseName, index, format, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"base_name": baseName,
		"segment":   seg,
	})
}

// handleStreamFinalize implements POST /stream/finalize.
func (h *HTTPServer) handleStreamFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.FormValue("base_name")
	if baseName == "" {
		http.Error(w, "base_name required", http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.FinalizeStream(r.Context(), baseName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, result)
}

// handleTranscript implements GET /transcript?base_name=.
func (h *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.URL.Query().Get("base_name")
	if baseName == "" {
		http.Error(w, "base_name required", http.StatusBadRequest)
		return
	}

	tr, err := h.orchestrator.GetTranscript(baseName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, tr)
}

// handleSegmentAt implements GET /segments/at?base_name=&t=.
func (h *HTTPServer) handleSegmentAt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.URL.Query().Get("base_name")
	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if baseName == "" || err != nil {
		http.Error(w, "base_name and numeric t required", http.StatusBadRequest)
		return
	}

	seg, err := h.orchestrator.SegmentAtTime(baseName, t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, seg)
}

// handleSegmentsRange implements GET /segments/range?base_name=&start=&end=.
func (h *HTTPServer) handleSegmentsRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.URL.Query().Get("base_name")
	start, errStart := strconv.ParseFloat(r.URL.Query().Get("start"), 64)
	end, errEnd := strconv.ParseFloat(r.URL.Query().Get("end"), 64)
	if baseName == "" || errStart != nil || errEnd != nil {
		http.Error(w, "base_name and numeric start/end required", http.StatusBadRequest)
		return
	}

	segs, err := h.orchestrator.SegmentsInRange(baseName, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"base_name": baseName,
		"start":     start,
		"end":       end,
		"segments":  segs,
	})
}

// handleSummary implements GET /summary?base_name=.
func (h *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.URL.Query().Get("base_name")
	if baseName == "" {
		http.Error(w, "base_name required", http.StatusBadRequest)
		return
	}

	sum, err := h.orchestrator.GetSummary(baseName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, sum)
}

// handleStatus implements GET /status?base_name=.
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.URL.Query().Get("base_name")
	if baseName == "" {
		http.Error(w, "base_name required", http.StatusBadRequest)
		return
	}

	st, err := h.orchestrator.Status(baseName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, st)
}

// handleRegenerate implements POST /regenerate?base_name=.
func (h *HTTPServer) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseName := r.FormValue("base_name")
	if baseName == "" {
		http.Error(w, "base_name required", http.StatusBadRequest)
		return
	}

	if err := h.orchestrator.RegenerateSummaries(r.Context(), baseName); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"base_name":   baseName,
		"regenerated": true,
	})
}

// handleRecords implements GET /records: the full recording catalog.
func (h *HTTPServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recs, err := h.registry.List()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"total":      len(recs),
		"recordings": recs,
	})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "edgemeet",
			"version": "1.0.0",
		},
	}

	h.writeJSON(w, health)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "EdgeMeet Transcription Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"POST /transcribe":      "Upload and process a whole recording",
			"POST /stream/chunk":    "Append a chunk to a live stream",
			"POST /stream/finalize": "Close a live stream and write the summary",
			"GET /transcript":       "Current transcript of a recording",
			"GET /segments/at":      "Segment covering a point in time",
			"GET /segments/range":   "Segments overlapping a time range",
			"GET /summary":          "Finalized whole-recording summary",
			"GET /status":           "Processing progress of a recording",
			"POST /regenerate":      "Recompute summaries from stored text",
			"GET /records":          "Catalog of all recordings",
			"GET /uploads/":         "Persisted audio and JSON artifacts",
			"GET /health":           "Service health check",
			"GET /metrics":          "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, apiDoc)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline errors onto HTTP status codes.
func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *audio.DecodeError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &de), errors.Is(err, transcript.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, transcript.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	http.Error(w, err.Error(), status)
}
