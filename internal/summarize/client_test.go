package summarize

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Model: "llama3"}); err == nil {
		t.Error("expected error for empty endpoint")
	}
	if _, err := NewClient(Config{Endpoint: "http://localhost:11434/api/generate"}); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestSummarizeAccumulatesStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fragments arrive as newline-delimited JSON objects.
		fmt.Fprintln(w, `{"response":"The team ","done":false}`)
		fmt.Fprintln(w, `{"response":"agreed on the plan.","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer server.Close()

	c, err := NewClient(Config{Endpoint: server.URL, Model: "llama3"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	got, err := c.Summarize(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "The team agreed on the plan." {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewClient(Config{Endpoint: server.URL, Model: "llama3"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := c.Summarize(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for 500 response")
	}
	if total, failed := c.Stats(); total != 1 || failed != 1 {
		t.Errorf("stats = %d/%d, want 1/1", total, failed)
	}
}
