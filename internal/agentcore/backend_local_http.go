package agentcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// LocalHTTPBackend adapts a self-hosted OpenAI-compatible completion
// endpoint (e.g. a locally running model server) to the Backend
// interface. Unlike HTTPOpenAIBackend it carries no API key requirement
// and targets an operator-supplied URL directly.
type LocalHTTPBackend struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewLocalHTTPBackend constructs a backend against a local completion
// endpoint such as http://localhost:11434/api/generate.
func NewLocalHTTPBackend(endpoint, model string) *LocalHTTPBackend {
	return &LocalHTTPBackend{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{},
	}
}

type localHTTPRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type localHTTPResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate posts prompt plus rendered history to the local endpoint and
// returns the generated text.
func (b *LocalHTTPBackend) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	payload, err := json.Marshal(localHTTPRequest{
		Model:  b.model,
		Prompt: renderHistory(history, prompt),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build local request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxStreamBytes))
	if err != nil {
		return "", fmt.Errorf("read local response: %w", err)
	}

	var parsed localHTTPResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse local response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("local backend error: %s", parsed.Error)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("local backend http status %d", resp.StatusCode)
	}
	return parsed.Response, nil
}
