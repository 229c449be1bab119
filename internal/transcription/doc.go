// Package transcription converts segment audio into text through an external
// speech-to-text HTTP API, with concurrency limiting, retries, and request
// statistics.
package transcription
