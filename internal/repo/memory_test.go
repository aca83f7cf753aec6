package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) *MemoryRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	m, err := OpenMemory(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMemoryInsertAdvancesReflectionCounter(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryObservation, Content: "the sky is blue"})
	require.NoError(t, err)

	should, err := m.ShouldReflect("alice", 1)
	require.NoError(t, err)
	assert.True(t, should)

	should, err = m.ShouldReflect("alice", 5)
	require.NoError(t, err)
	assert.False(t, should)
}

func TestMemoryMarkReflectedResetsCounter(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryObservation, Content: "fact one"})
	require.NoError(t, err)
	require.NoError(t, m.MarkReflected("alice"))

	should, err := m.ShouldReflect("alice", 1)
	require.NoError(t, err)
	assert.False(t, should)
}

func TestMemoryRetrieveRanksByRelevance(t *testing.T) {
	m := newTestMemory(t)
	now := time.Now().UTC()
	_, err := m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryInsight, Content: "quantum mechanics is probabilistic", Importance: 0.5, CreatedAt: now})
	require.NoError(t, err)
	_, err = m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryInsight, Content: "cats are mammals", Importance: 0.5, CreatedAt: now})
	require.NoError(t, err)

	results, err := m.Retrieve(context.Background(), "alice", "quantum mechanics probability", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Content, "quantum")
}

func TestMemoryRetrieveRanksByImportanceWhenNoQuery(t *testing.T) {
	m := newTestMemory(t)
	now := time.Now().UTC()
	_, err := m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryInsight, Content: "low importance", Importance: 0.1, CreatedAt: now})
	require.NoError(t, err)
	_, err = m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryInsight, Content: "high importance", Importance: 0.9, CreatedAt: now})
	require.NoError(t, err)

	results, err := m.Retrieve(context.Background(), "alice", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high importance", results[0].Content)
}

func TestMemoryRetrieveAppliesRecencyDecay(t *testing.T) {
	m := newTestMemory(t)
	m.SetHalfLife(time.Hour)
	now := time.Now().UTC()
	_, err := m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryObservation, Content: "stale", Importance: 0.5, CreatedAt: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryObservation, Content: "fresh", Importance: 0.5, CreatedAt: now})
	require.NoError(t, err)

	results, err := m.Retrieve(context.Background(), "alice", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "fresh", results[0].Content)
}

func TestMemoryRetrieveLimitsResults(t *testing.T) {
	m := newTestMemory(t)
	for i := 0; i < 5; i++ {
		_, err := m.Insert(MemoryEntity{AgentName: "alice", MemoryType: MemoryObservation, Content: "fact"})
		require.NoError(t, err)
	}

	results, err := m.Retrieve(context.Background(), "alice", "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
