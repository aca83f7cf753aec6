// Package retrypolicy computes jittered exponential backoff delays for
// Agent wrappers and HTTP-backed repositories (spec §4.3). It generalizes
// the teacher's one-off "retry once on failure" precedent in
// GenerateAndStreamAudio into a reusable, parameterized policy.
package retrypolicy

import (
	"math"
	"math/rand"
)

// Config holds the tunables for CalculateDelay. Attempts are 0-indexed.
type Config struct {
	BaseSeconds  float64
	CapSeconds   float64
	JitterFactor float64
	MaxAttempts  int
}

// DefaultConfig mirrors the spec's stated defaults: base backoff doubling
// per attempt, capped, ±jitter, up to 3 attempts total.
func DefaultConfig() Config {
	return Config{
		BaseSeconds:  0.5,
		CapSeconds:   30,
		JitterFactor: 0.2,
		MaxAttempts:  3,
	}
}

// CalculateDelay returns the backoff delay in seconds for the given
// 0-indexed attempt: max(0.1, min(base*2^attempt, capSeconds) * (1 + U(-jitter, jitter))).
// rng defaults to a freshly seeded source when nil.
func CalculateDelay(attempt int, base, capSeconds, jitterFactor float64, rng *rand.Rand) float64 {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	raw := base * math.Pow(2, float64(attempt))
	if raw > capSeconds {
		raw = capSeconds
	}
	jitter := 1 + (rng.Float64()*2-1)*jitterFactor
	delay := raw * jitter
	if delay < 0.1 {
		return 0.1
	}
	return delay
}

// Delay computes CalculateDelay using cfg's parameters.
func (cfg Config) Delay(attempt int, rng *rand.Rand) float64 {
	return CalculateDelay(attempt, cfg.BaseSeconds, cfg.CapSeconds, cfg.JitterFactor, rng)
}

// ShouldRetry reports whether another attempt is permitted under cfg,
// given the number of attempts already made (0-indexed count so far).
func (cfg Config) ShouldRetry(attemptsMade int) bool {
	return attemptsMade < cfg.MaxAttempts
}
