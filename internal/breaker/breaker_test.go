package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker() *Breaker {
	b := New(Config{FailureThreshold: 3, CooldownSeconds: 60, HalfOpenSuccessThreshold: 2})
	return b
}

func TestCanProceedDefaultClosed(t *testing.T) {
	b := newTestBreaker()
	assert.True(t, b.CanProceed("agentA"))
	assert.Equal(t, Closed, b.State("agentA"))
}

func TestRecordFailureOpensAtThreshold(t *testing.T) {
	b := newTestBreaker()
	assert.False(t, b.RecordFailure("agentA"))
	assert.False(t, b.RecordFailure("agentA"))
	assert.True(t, b.RecordFailure("agentA"))
	assert.Equal(t, Open, b.State("agentA"))
	assert.False(t, b.CanProceed("agentA"))
}

func TestRecordSuccessResetsClosedFailures(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.RecordSuccess("agentA")
	assert.False(t, b.RecordFailure("agentA"))
	assert.False(t, b.RecordFailure("agentA"))
	assert.Equal(t, Closed, b.State("agentA"))
}

func TestHalfOpenTransitionAfterCooldown(t *testing.T) {
	b := newTestBreaker()
	fixedNow := time.Now()
	b.now = func() time.Time { return fixedNow }
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	require.Equal(t, Open, b.State("agentA"))

	b.now = func() time.Time { return fixedNow.Add(61 * time.Second) }
	assert.True(t, b.CanProceed("agentA"))
	assert.Equal(t, HalfOpen, b.State("agentA"))
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := newTestBreaker()
	fixedNow := time.Now()
	b.now = func() time.Time { return fixedNow }
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.now = func() time.Time { return fixedNow.Add(61 * time.Second) }
	b.CanProceed("agentA")
	require.Equal(t, HalfOpen, b.State("agentA"))

	b.RecordSuccess("agentA")
	assert.Equal(t, HalfOpen, b.State("agentA"))
	b.RecordSuccess("agentA")
	assert.Equal(t, Closed, b.State("agentA"))
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := newTestBreaker()
	fixedNow := time.Now()
	b.now = func() time.Time { return fixedNow }
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.now = func() time.Time { return fixedNow.Add(61 * time.Second) }
	b.CanProceed("agentA")
	require.Equal(t, HalfOpen, b.State("agentA"))

	opened := b.RecordFailure("agentA")
	assert.True(t, opened)
	assert.Equal(t, Open, b.State("agentA"))
}

func TestFilterAvailable(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure("bad")
	b.RecordFailure("bad")
	b.RecordFailure("bad")
	out := b.FilterAvailable([]string{"good", "bad", "also-good"})
	assert.Equal(t, []string{"good", "also-good"}, out)
}

func TestEntitiesAreIndependent(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	assert.Equal(t, Open, b.State("agentA"))
	assert.Equal(t, Closed, b.State("agentB"))
}

func TestToDictFromDictRoundTrip(t *testing.T) {
	b := newTestBreaker()
	fixedNow := time.Now()
	b.now = func() time.Time { return fixedNow }
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	b.RecordFailure("agentA")
	require.Equal(t, Open, b.State("agentA"))

	snap := b.ToDict()
	assert.Contains(t, snap.OpenAgeSecs, "agentA")

	restored := newTestBreaker()
	restored.now = func() time.Time { return fixedNow.Add(10 * time.Second) }
	restored.FromDict(snap)
	assert.Equal(t, Open, restored.State("agentA"))
}

func TestFromDictDropsExpiredOpenCircuits(t *testing.T) {
	snap := Snapshot{
		Failures:    map[string]int{"agentA": 3},
		OpenAgeSecs: map[string]float64{"agentA": 120},
	}
	b := newTestBreaker()
	b.FromDict(snap)
	assert.Equal(t, Closed, b.State("agentA"))
}
