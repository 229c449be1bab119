package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription service
type Metrics struct {
	// Ingestion metrics
	RecordingsIngested prometheus.Counter
	StreamChunks       prometheus.Counter
	IngestDuration     prometheus.Histogram

	// Segment metrics
	SegmentsTranscribed   prometheus.Counter
	SegmentsGated         prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	SegmentVolume         prometheus.Histogram

	// Summary metrics
	BatchSummaries        prometheus.Counter
	SummarizationFailures prometheus.Counter
	OverallSummaries      prometheus.Counter
	SummarizationDuration prometheus.Histogram

	// Stream session metrics
	ActiveSessions   prometheus.Gauge
	SessionsFinished prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Ingestion metrics
		RecordingsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_recordings_ingested_total",
			Help: "Total number of whole recordings ingested",
		}),
		StreamChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_stream_chunks_total",
			Help: "Total number of streamed audio chunks received",
		}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgemeet_ingest_duration_seconds",
			Help:    "End-to-end duration of whole-recording ingestion",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~34 minutes
		}),

		// Segment metrics
		SegmentsTranscribed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_segments_transcribed_total",
			Help: "Total number of segments sent through transcription",
		}),
		SegmentsGated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_segments_gated_total",
			Help: "Total number of segments skipped as silence",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_transcription_failures_total",
			Help: "Total number of segments whose transcription failed",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgemeet_transcription_duration_seconds",
			Help:    "Duration of per-segment transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		SegmentVolume: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgemeet_segment_volume",
			Help:    "RMS volume of processed segments",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),

		// Summary metrics
		BatchSummaries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_batch_summaries_total",
			Help: "Total number of batch summaries produced",
		}),
		SummarizationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_summarization_failures_total",
			Help: "Total number of failed summarization requests",
		}),
		OverallSummaries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_overall_summaries_total",
			Help: "Total number of whole-recording summaries produced",
		}),
		SummarizationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgemeet_summarization_duration_seconds",
			Help:    "Duration of summarization requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}),

		// Stream session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "edgemeet_active_stream_sessions",
			Help: "Current number of open streaming sessions",
		}),
		SessionsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgemeet_stream_sessions_finished_total",
			Help: "Total number of finalized streaming sessions",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemeet_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgemeet_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemeet_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRecordingIngested records a completed whole-recording ingestion
func (m *Metrics) RecordRecordingIngested(durationSeconds float64) {
	m.RecordingsIngested.Inc()
	m.IngestDuration.Observe(durationSeconds)
}

// RecordStreamChunk increments the stream chunks counter
func (m *Metrics) RecordStreamChunk() {
	m.StreamChunks.Inc()
}

// RecordSegmentTranscribed records a transcribed segment and its volume
func (m *Metrics) RecordSegmentTranscribed(durationSeconds, volume float64) {
	m.SegmentsTranscribed.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	m.SegmentVolume.Observe(volume)
}

// RecordSegmentGated records a segment skipped by the volume gate
func (m *Metrics) RecordSegmentGated(volume float64) {
	m.SegmentsGated.Inc()
	m.SegmentVolume.Observe(volume)
}

// RecordTranscriptionFailure increments the transcription failures counter
func (m *Metrics) RecordTranscriptionFailure() {
	m.TranscriptionFailures.Inc()
}

// RecordBatchSummary records a produced batch summary
func (m *Metrics) RecordBatchSummary(durationSeconds float64, failed bool) {
	m.BatchSummaries.Inc()
	m.SummarizationDuration.Observe(durationSeconds)
	if failed {
		m.SummarizationFailures.Inc()
	}
}

// RecordOverallSummary increments the overall summaries counter
func (m *Metrics) RecordOverallSummary() {
	m.OverallSummaries.Inc()
}

// SetActiveSessions sets the current number of open streaming sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionFinished increments the finished sessions counter
func (m *Metrics) RecordSessionFinished() {
	m.SessionsFinished.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
