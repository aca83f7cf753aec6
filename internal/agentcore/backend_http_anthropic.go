package agentcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPAnthropicBackend adapts Anthropic's Messages API shape to the
// Backend interface. It is a thin hand-rolled HTTP client (langchaingo has
// no Anthropic provider in the teacher's pinned version) kept minimal and
// grounded on the same timeout/error-surface contract as the OpenAI-shape
// adapter.
type HTTPAnthropicBackend struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewHTTPAnthropicBackend constructs a backend against the given model.
// baseURL defaults to Anthropic's public API when empty.
func NewHTTPAnthropicBackend(apiKey, model, baseURL string) *HTTPAnthropicBackend {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1/messages"
	}
	return &HTTPAnthropicBackend{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt plus history as an Anthropic Messages request and
// returns the concatenated text blocks of the response.
func (b *HTTPAnthropicBackend) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	messages := make([]anthropicMessage, 0, len(history)+1)
	for _, m := range history {
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		messages = append(messages, anthropicMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, anthropicMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(anthropicRequest{
		Model:     b.model,
		MaxTokens: 1024,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxStreamBytes))
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("anthropic http status %d", resp.StatusCode)
	}

	var out string
	for _, block := range parsed.Content {
		out += block.Text
	}
	return out, nil
}
