package arena

import (
	"context"

	"github.com/aragora-project/aragora-go/internal/similarity"
)

// ConvergenceScorer computes pairwise similarity across a round's
// proposals and tracks whether the debate has converged over two
// consecutive rounds (spec §4.8 step 6).
type ConvergenceScorer struct {
	backend          similarity.Backend
	threshold        float64
	consecutiveAbove int
}

// NewConvergenceScorer constructs a scorer using backend and threshold.
func NewConvergenceScorer(backend similarity.Backend, threshold float64) *ConvergenceScorer {
	return &ConvergenceScorer{backend: backend, threshold: threshold}
}

// Score computes the average pairwise similarity across proposals and
// reports whether the debate has now converged (two consecutive rounds
// at or above threshold).
func (c *ConvergenceScorer) Score(ctx context.Context, proposals map[string]string) (avgSimilarity float64, converged bool) {
	texts := make([]string, 0, len(proposals))
	for _, content := range proposals {
		texts = append(texts, content)
	}
	if len(texts) < 2 {
		c.consecutiveAbove = 0
		return 0, false
	}

	var sum float64
	var count int
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			sim, err := c.backend.ComputeSimilarity(ctx, texts[i], texts[j])
			if err != nil {
				continue
			}
			sum += sim
			count++
		}
	}
	if count == 0 {
		c.consecutiveAbove = 0
		return 0, false
	}

	avg := sum / float64(count)
	if avg >= c.threshold {
		c.consecutiveAbove++
	} else {
		c.consecutiveAbove = 0
	}

	return avg, c.consecutiveAbove >= 2
}

// Reset clears the consecutive-rounds counter, used when starting a new debate.
func (c *ConvergenceScorer) Reset() {
	c.consecutiveAbove = 0
}
