package rating

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratings.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordMatchRejectsNoWinner(t *testing.T) {
	ledger := NewLedger(newTestDB(t), DefaultK)
	_, err := ledger.RecordMatch("d1", "", []string{"alice", "bob"}, "")
	assert.ErrorIs(t, err, ErrNoWinner)
}

func TestRecordMatchPersistsRatingsAndLeaderboard(t *testing.T) {
	ledger := NewLedger(newTestDB(t), DefaultK)

	record, err := ledger.RecordMatch("d1", "alice", []string{"alice", "bob"}, "logic")
	require.NoError(t, err)
	assert.Equal(t, "alice", record.Winner)
	assert.InDelta(t, 16.0, record.EloChanges["alice"], 1e-9)

	board, err := ledger.GetLeaderboard(10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "alice", board[0].AgentName)
	assert.Greater(t, board[0].Elo, board[1].Elo)
	assert.Equal(t, 1, board[0].Matches)
	assert.Equal(t, 1, board[0].Wins)
	assert.Equal(t, 1, board[1].Losses)
}

func TestRecordMatchAccumulatesAcrossMatches(t *testing.T) {
	ledger := NewLedger(newTestDB(t), DefaultK)

	_, err := ledger.RecordMatch("d1", "alice", []string{"alice", "bob"}, "")
	require.NoError(t, err)
	_, err = ledger.RecordMatch("d2", "alice", []string{"alice", "bob"}, "")
	require.NoError(t, err)

	board, err := ledger.GetLeaderboard(10)
	require.NoError(t, err)
	var alice Rating
	for _, r := range board {
		if r.AgentName == "alice" {
			alice = r
		}
	}
	assert.Equal(t, 2, alice.Matches)
	assert.Equal(t, 2, alice.Wins)
}

func TestGetMatchHistoryOrdersNewestFirst(t *testing.T) {
	ledger := NewLedger(newTestDB(t), DefaultK)

	_, err := ledger.RecordMatch("d1", "alice", []string{"alice", "bob"}, "")
	require.NoError(t, err)
	_, err = ledger.RecordMatch("d2", "bob", []string{"alice", "bob"}, "")
	require.NoError(t, err)

	history, err := ledger.GetMatchHistory("alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "d2", history[0].DebateID)
	assert.Equal(t, "d1", history[1].DebateID)
	assert.Contains(t, history[0].Participants, "alice")
	assert.Contains(t, history[0].Participants, "bob")
}
