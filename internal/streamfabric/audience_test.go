package streamfabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsUpToBurst(t *testing.T) {
	b := NewTokenBucket(10, 5)
	fixed := time.Now()
	b.now = func() time.Time { return fixed }
	for i := 0; i < 5; i++ {
		assert.True(t, b.Consume(1))
	}
	assert.False(t, b.Consume(1))
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	b := NewTokenBucket(60, 5)
	fixed := time.Now()
	b.now = func() time.Time { return fixed }
	for i := 0; i < 5; i++ {
		b.Consume(1)
	}
	require.False(t, b.Consume(1))

	b.now = func() time.Time { return fixed.Add(time.Minute) }
	assert.True(t, b.Consume(1))
}

func TestIntensityMultiplierBounds(t *testing.T) {
	assert.InDelta(t, 0.5, intensityMultiplier(1), 0.001)
	assert.InDelta(t, 2.0, intensityMultiplier(10), 0.001)
}

func TestNormalizeIntensityDefaultsOutOfRange(t *testing.T) {
	assert.Equal(t, 5, normalizeIntensity(0, 5, 1, 10))
	assert.Equal(t, 5, normalizeIntensity(11, 5, 1, 10))
	assert.Equal(t, 7, normalizeIntensity(7, 5, 1, 10))
}

func TestInboxPutAndGetAllDrains(t *testing.T) {
	inb := NewInbox()
	inb.Put(AudienceMessage{Kind: AudienceVote, LoopID: "l1", Payload: VotePayload{Choice: "alice", Intensity: 8}})
	all := inb.GetAll()
	require.Len(t, all, 1)
	assert.Empty(t, inb.GetAll())
}

func TestInboxGetSummaryAggregatesVotes(t *testing.T) {
	inb := NewInbox()
	inb.Put(AudienceMessage{Kind: AudienceVote, LoopID: "l1", Payload: VotePayload{Choice: "alice", Intensity: 10}})
	inb.Put(AudienceMessage{Kind: AudienceVote, LoopID: "l1", Payload: VotePayload{Choice: "alice", Intensity: 1}})
	inb.Put(AudienceMessage{Kind: AudienceVote, LoopID: "l1", Payload: VotePayload{Choice: "bob", Intensity: 0}})
	inb.Put(AudienceMessage{Kind: AudienceSuggestion, LoopID: "l1", Payload: SuggestionPayload{Text: "try harder"}})

	summary := inb.GetSummary("l1")
	assert.Equal(t, 2, summary.Votes["alice"])
	assert.Equal(t, 1, summary.Votes["bob"])
	assert.InDelta(t, 2.5, summary.WeightedVotes["alice"], 0.001)
	assert.InDelta(t, 1.0, summary.WeightedVotes["bob"], 0.001)
	assert.Equal(t, []string{"try harder"}, summary.Suggestions)
	assert.Equal(t, 4, summary.Total)
}

func TestInboxGetSummaryFiltersByLoopID(t *testing.T) {
	inb := NewInbox()
	inb.Put(AudienceMessage{Kind: AudienceVote, LoopID: "l1", Payload: VotePayload{Choice: "a", Intensity: 5}})
	inb.Put(AudienceMessage{Kind: AudienceVote, LoopID: "l2", Payload: VotePayload{Choice: "b", Intensity: 5}})

	summary := inb.GetSummary("l1")
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Votes["a"])
}

func TestInboxAllowRateLimitsPerClient(t *testing.T) {
	inb := NewInbox()
	fixed := time.Now()
	inb.now = func() time.Time { return fixed }
	for i := 0; i < DefaultBurstSize; i++ {
		assert.True(t, inb.Allow("client-1"))
	}
	assert.False(t, inb.Allow("client-1"))
	assert.True(t, inb.Allow("client-2"))
}

func TestInboxSweepEvictsStaleClients(t *testing.T) {
	inb := NewInbox()
	fixed := time.Now()
	inb.now = func() time.Time { return fixed }
	inb.Allow("stale-client")

	inb.now = func() time.Time { return fixed.Add(rateLimiterTTL + time.Second) }
	for i := 0; i < cleanupInterval; i++ {
		inb.Allow("other-client")
	}

	inb.mu.Lock()
	_, stillThere := inb.rateLimiters["stale-client"]
	inb.mu.Unlock()
	assert.False(t, stillThere)
}
