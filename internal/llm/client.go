// Package llm talks to the generative model endpoint. The wire protocol is
// a thin HTTP call; everything interesting (prompt assembly, escalation)
// happens in the callers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned once every retry attempt against the model
// endpoint has failed.
var ErrUnavailable = errors.New("model unavailable")

// Client communicates with a local generative model server over HTTP.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	retry      RetryConfig
}

// New creates a Client targeting the given base URL and model name with the
// default retry policy.
func New(baseURL, model string) *Client {
	return NewWithRetry(baseURL, model, DefaultRetryConfig())
}

// NewWithRetry creates a Client with an explicit retry policy.
func NewWithRetry(baseURL, model string, retry RetryConfig) *Client {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{},
		retry:      retry,
	}
}

// Reachable returns true if the model server responds to GET /api/tags with 200.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the JSON returned by POST /api/generate (non-streaming).
type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends the flattened prompt to the model and returns its response
// text, retrying transient failures per the client's retry policy.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, c.retry, func() (string, error) {
		return c.generateOnce(ctx, prompt)
	})
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate: unexpected status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}

	return result.Response, nil
}
