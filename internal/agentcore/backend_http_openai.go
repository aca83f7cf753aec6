package agentcore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// HTTPOpenAIBackend adapts an OpenAI-shaped chat completion endpoint to
// the Backend interface, generalizing internal/agent.Agent's direct
// openai.New(...) + llms.GenerateFromSinglePrompt call.
type HTTPOpenAIBackend struct {
	llm llms.Model
}

// NewHTTPOpenAIBackend constructs a backend against model using the given
// API key and optional base URL override (for OpenAI-compatible gateways).
func NewHTTPOpenAIBackend(apiKey, model, baseURL string) (*HTTPOpenAIBackend, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("construct openai-shape backend: %w", err)
	}
	return &HTTPOpenAIBackend{llm: llm}, nil
}

// Generate sends prompt plus history as a single-turn completion request
// and returns the accumulated text, streaming chunks into an internal
// buffer capped at MaxStreamBytes to bound memory use.
func (b *HTTPOpenAIBackend) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	content := renderHistory(history, prompt)

	var accumulated []byte
	resp, err := b.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, content),
	}, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(accumulated)+len(chunk) > MaxStreamBytes {
			return fmt.Errorf("stream exceeded %d byte cap", MaxStreamBytes)
		}
		accumulated = append(accumulated, chunk...)
		return nil
	}))
	if err != nil {
		return "", err
	}
	if len(accumulated) > 0 {
		return string(accumulated), nil
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Content, nil
}

func renderHistory(history []Message, prompt string) string {
	if len(history) == 0 {
		return prompt
	}
	out := ""
	for _, m := range history {
		out += m.Role + ": " + m.Content + "\n"
	}
	return out + "\n" + prompt
}
