// Package summarize produces incremental batch summaries and the final
// whole-recording summary through an external language model HTTP API.
package summarize
