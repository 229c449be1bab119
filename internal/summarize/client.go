package summarize

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Summarizer produces a short summary for the given prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Config contains summarization client configuration
type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client talks to an Ollama-compatible generation endpoint. Responses arrive
// as newline-delimited JSON objects that each carry a fragment of the output.
type Client struct {
	config     Config
	httpClient *http.Client

	totalRequests  uint64
	failedRequests uint64

	mu sync.RWMutex
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewClient creates a new summarization client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Summarize sends the prompt and accumulates the streamed response fragments
// into a single string.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()

	payload, err := json.Marshal(generateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.markFailed()
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.markFailed()
		return "", fmt.Errorf("HTTP error %d from summarization API", resp.StatusCode)
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			c.markFailed()
			return "", fmt.Errorf("failed to parse response chunk: %w", err)
		}

		out.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		c.markFailed()
		return "", fmt.Errorf("failed to read response stream: %w", err)
	}

	return strings.TrimSpace(out.String()), nil
}

func (c *Client) markFailed() {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()
}

// Stats reports request counters.
func (c *Client) Stats() (total, failed uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalRequests, c.failedRequests
}
