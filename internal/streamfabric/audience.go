package streamfabric

import (
	"sync"
	"time"
)

// TokenBucket rate-limits one client's audience messages (spec §4.7),
// ported from original_source's TokenBucket in aragora/server/stream.py.
type TokenBucket struct {
	mu            sync.Mutex
	ratePerMinute float64
	burstSize     float64
	tokens        float64
	lastRefill    time.Time
	now           func() time.Time
}

// NewTokenBucket constructs a bucket starting full.
func NewTokenBucket(ratePerMinute, burstSize float64) *TokenBucket {
	return &TokenBucket{
		ratePerMinute: ratePerMinute,
		burstSize:     burstSize,
		tokens:        burstSize,
		lastRefill:    time.Now(),
		now:           time.Now,
	}
}

// Consume attempts to take `cost` tokens, refilling based on elapsed time
// since the last call, and reports whether the request is allowed.
func (t *TokenBucket) Consume(cost float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	elapsedMinutes := now.Sub(t.lastRefill).Minutes()
	refill := elapsedMinutes * t.ratePerMinute
	t.tokens += refill
	if t.tokens > t.burstSize {
		t.tokens = t.burstSize
	}
	t.lastRefill = now

	if t.tokens < cost {
		return false
	}
	t.tokens -= cost
	return true
}

// DefaultBurstSize and DefaultRatePerMinute are spec §4.7's defaults.
const (
	DefaultBurstSize     = 5
	DefaultRatePerMinute = 10
	rateLimiterTTL       = 3600 * time.Second
	cleanupInterval      = 100
)

// normalizeIntensity clamps a raw intensity into [1,10], defaulting to 5
// when missing or out of range (spec §4.7).
func normalizeIntensity(value, defaultVal, min, max int) int {
	if value < min || value > max {
		return defaultVal
	}
	return value
}

// intensityMultiplier maps intensity ∈ [1,10] linearly to [0.5, 2.0]
// (spec §4.7: "1→0.5, 10→2.0").
func intensityMultiplier(intensity int) float64 {
	return 0.5 + float64(intensity-1)*0.1667
}

type rateLimiterEntry struct {
	bucket     *TokenBucket
	lastAccess time.Time
}

// Inbox accumulates audience votes and suggestions and enforces per-client
// token-bucket rate limiting, ported from original_source's
// AudienceInbox + DebateStreamServer's rate limiter map.
type Inbox struct {
	mu             sync.Mutex
	messages       []AudienceMessage
	rateLimiters   map[string]*rateLimiterEntry
	cleanupCounter int
	now            func() time.Time
}

// NewInbox constructs an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{
		rateLimiters: make(map[string]*rateLimiterEntry),
		now:          time.Now,
	}
}

// Allow checks (and lazily creates) the token bucket for clientID and
// consumes one token, returning false if the client is rate-limited.
// Every call also sweeps stale buckets every cleanupInterval accesses
// (spec §4.7 "Stale buckets ... are periodically evicted").
func (inb *Inbox) Allow(clientID string) bool {
	inb.mu.Lock()
	entry, ok := inb.rateLimiters[clientID]
	if !ok {
		entry = &rateLimiterEntry{bucket: NewTokenBucket(DefaultRatePerMinute, DefaultBurstSize)}
		inb.rateLimiters[clientID] = entry
	}
	entry.lastAccess = inb.now()
	inb.cleanupCounter++
	if inb.cleanupCounter >= cleanupInterval {
		inb.cleanupCounter = 0
		inb.sweepLocked()
	}
	inb.mu.Unlock()

	return entry.bucket.Consume(1)
}

func (inb *Inbox) sweepLocked() {
	now := inb.now()
	for id, entry := range inb.rateLimiters {
		if now.Sub(entry.lastAccess) >= rateLimiterTTL {
			delete(inb.rateLimiters, id)
		}
	}
}

// Put appends msg to the inbox (spec §4.7 "put(msg) — thread-safe append").
func (inb *Inbox) Put(msg AudienceMessage) {
	inb.mu.Lock()
	defer inb.mu.Unlock()
	inb.messages = append(inb.messages, msg)
}

// GetAll drains and clears the inbox (spec §4.7 "get_all").
func (inb *Inbox) GetAll() []AudienceMessage {
	inb.mu.Lock()
	defer inb.mu.Unlock()
	out := inb.messages
	inb.messages = nil
	return out
}

// Summary is the aggregate view returned by GetSummary (spec §4.7
// "get_summary").
type Summary struct {
	Votes                  map[string]int         `json:"votes"`
	WeightedVotes          map[string]float64     `json:"weighted_votes"`
	Suggestions            []string               `json:"suggestions"`
	Total                  int                    `json:"total"`
	Histograms             map[string]map[int]int `json:"histograms"`
	ConvictionDistribution map[int]int            `json:"conviction_distribution"`
}

// GetSummary aggregates the current inbox contents, optionally filtered
// to a single loop_id, without draining them.
func (inb *Inbox) GetSummary(loopID string) Summary {
	inb.mu.Lock()
	defer inb.mu.Unlock()

	summary := Summary{
		Votes:                  make(map[string]int),
		WeightedVotes:          make(map[string]float64),
		Histograms:             make(map[string]map[int]int),
		ConvictionDistribution: make(map[int]int),
	}

	for _, msg := range inb.messages {
		if loopID != "" && msg.LoopID != loopID {
			continue
		}
		summary.Total++
		switch msg.Kind {
		case AudienceVote:
			vote, ok := msg.Payload.(VotePayload)
			if !ok {
				continue
			}
			// A missing or out-of-range intensity is tallied as 5 but weighs 1.0.
			intensity := normalizeIntensity(vote.Intensity, 5, 1, 10)
			weight := 1.0
			if intensity == vote.Intensity {
				weight = intensityMultiplier(intensity)
			}
			summary.Votes[vote.Choice]++
			summary.WeightedVotes[vote.Choice] += weight
			if summary.Histograms[vote.Choice] == nil {
				summary.Histograms[vote.Choice] = make(map[int]int)
			}
			summary.Histograms[vote.Choice][intensity]++
			summary.ConvictionDistribution[intensity]++
		case AudienceSuggestion:
			if s, ok := msg.Payload.(SuggestionPayload); ok {
				summary.Suggestions = append(summary.Suggestions, s.Text)
			}
		}
	}

	return summary
}
