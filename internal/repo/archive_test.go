package repo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *ArchiveRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debates.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchiveSaveAndGet(t *testing.T) {
	a := newTestArchive(t)
	started := time.Now().UTC().Add(-time.Hour)
	ended := time.Now().UTC()

	err := a.Save(DebateRecord{
		ID:               "d1",
		Slug:             "should-we-1",
		Task:             "Should we?",
		FinalAnswer:      "Yes",
		ConsensusReached: true,
		RoundsUsed:       2,
		StartedAt:        started,
		EndedAt:          ended,
		Artifact:         []byte(`{"id":"d1"}`),
	})
	require.NoError(t, err)

	rec, err := a.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, "should-we-1", rec.Slug)
	assert.Equal(t, "Yes", rec.FinalAnswer)
	assert.True(t, rec.ConsensusReached)
	assert.Equal(t, 2, rec.RoundsUsed)
	assert.JSONEq(t, `{"id":"d1"}`, string(rec.Artifact))
}

func TestArchiveSaveUpsertsOnConflict(t *testing.T) {
	a := newTestArchive(t)
	require.NoError(t, a.Save(DebateRecord{ID: "d1", Slug: "v1", Task: "t", StartedAt: time.Now().UTC(), Artifact: []byte(`{}`)}))
	require.NoError(t, a.Save(DebateRecord{ID: "d1", Slug: "v2", Task: "t", FinalAnswer: "done", ConsensusReached: true, StartedAt: time.Now().UTC(), Artifact: []byte(`{}`)}))

	rec, err := a.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Slug)
	assert.True(t, rec.ConsensusReached)
}

func TestArchiveListOrdersNewestFirst(t *testing.T) {
	a := newTestArchive(t)
	base := time.Now().UTC()
	require.NoError(t, a.Save(DebateRecord{ID: "d1", Slug: "s1", Task: "t", StartedAt: base, Artifact: []byte(`{}`)}))
	require.NoError(t, a.Save(DebateRecord{ID: "d2", Slug: "s2", Task: "t", StartedAt: base.Add(time.Minute), Artifact: []byte(`{}`)}))

	list, err := a.List(10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d2", list[0].ID)
	assert.Equal(t, "d1", list[1].ID)
}
