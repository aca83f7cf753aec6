package similarity

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements Embedder via OpenAI's embeddings endpoint,
// generalizing tools.VectorService.GetEmbedding into the pluggable
// Embedder contract.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder constructs an Embedder backed by apiKey. An empty
// model defaults to text-embedding-ada-002.
func NewOpenAIEmbedder(apiKey string, model openai.EmbeddingModel) *OpenAIEmbedder {
	if model == "" {
		model = openai.AdaEmbeddingV2
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}
}

// Embed satisfies Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity: embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("similarity: embedding response contained no vectors")
	}
	return resp.Data[0].Embedding, nil
}
