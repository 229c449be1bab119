// Package pipeline orchestrates the full processing chain of a recording:
// normalization, windowed segmentation, volume gating, transcription,
// incremental batch summarization, and final summary persistence. Batch
// uploads and live streams run through the same chain and converge to the
// same stored representation.
package pipeline
