// Package audio handles decoding, normalization, and loudness measurement.
// It converts arbitrary input audio into the canonical mono 16kHz 16-bit PCM
// form used by the rest of the pipeline, stitches pre-normalized chunks,
// encodes canonical PCM back into WAV containers, and computes the RMS
// loudness used by the volume gate.
package audio
