// Package similarity provides the pluggable SimilarityBackend capability
// used by vote grouping and convergence scoring (spec §4.9). It
// generalizes the teacher's tools.VectorService (an OpenAI-embeddings-only
// cosine similarity helper) into an interface with an embedding-backed
// implementation and a dependency-free token-Jaccard fallback.
package similarity

import (
	"context"
	"math"
	"strings"
)

// Backend computes a similarity score in [0,1] between two strings.
type Backend interface {
	ComputeSimilarity(ctx context.Context, a, b string) (float64, error)
}

// Embedder produces a vector embedding for a piece of text; satisfied by
// an OpenAI-backed client or any other embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingBackend computes similarity via cosine distance between
// embedding vectors, generalizing tools.VectorService.CosineSimilarity.
type EmbeddingBackend struct {
	embedder Embedder
}

// NewEmbeddingBackend wraps an Embedder as a SimilarityBackend.
func NewEmbeddingBackend(embedder Embedder) *EmbeddingBackend {
	return &EmbeddingBackend{embedder: embedder}
}

// ComputeSimilarity embeds both strings and returns their cosine similarity.
func (e *EmbeddingBackend) ComputeSimilarity(ctx context.Context, a, b string) (float64, error) {
	if a == b {
		return 1, nil
	}
	va, err := e.embedder.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.embedder.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(va, vb), nil
}

func cosineSimilarity(vec1, vec2 []float32) float64 {
	if len(vec1) != len(vec2) || len(vec1) == 0 {
		return 0
	}
	var dot, norm1, norm2 float64
	for i := range vec1 {
		dot += float64(vec1[i]) * float64(vec2[i])
		norm1 += float64(vec1[i]) * float64(vec1[i])
		norm2 += float64(vec2[i]) * float64(vec2[i])
	}
	if norm1 == 0 || norm2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(norm1) * math.Sqrt(norm2))
}

// TokenJaccardBackend is the dependency-free fallback used when no
// embedding provider is configured (spec §4.9: "token-Jaccard fallback").
type TokenJaccardBackend struct{}

// NewTokenJaccardBackend constructs the stdlib-only fallback backend.
func NewTokenJaccardBackend() *TokenJaccardBackend {
	return &TokenJaccardBackend{}
}

// ComputeSimilarity returns the Jaccard index of the two strings' lowercased
// token sets: |intersection| / |union|.
func (TokenJaccardBackend) ComputeSimilarity(_ context.Context, a, b string) (float64, error) {
	if a == b {
		return 1, nil
	}
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1, nil
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0, nil
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0, nil
	}
	return float64(intersection) / float64(union), nil
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			set[f] = true
		}
	}
	return set
}

// Auto selects an EmbeddingBackend when embedder is non-nil, otherwise
// falls back to TokenJaccardBackend, mirroring original_source's
// `get_similarity_backend("auto")` lazy-load precedent in
// aragora/debate/phases/voting.py.
func Auto(embedder Embedder) Backend {
	if embedder != nil {
		return NewEmbeddingBackend(embedder)
	}
	return NewTokenJaccardBackend()
}
