// Package server exposes the HTTP API: recording upload, live stream
// ingestion, transcript and summary queries, the recording catalog, and
// operational endpoints.
package server
