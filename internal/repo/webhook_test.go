package repo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhookStore(t *testing.T) *WebhookStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webhook.db")
	s, err := OpenWebhookStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWebhookSeenDetectsDuplicate(t *testing.T) {
	s := newTestWebhookStore(t)

	dup, err := s.Seen("evt-1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = s.Seen("evt-1")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestWebhookPruneRemovesOldEntries(t *testing.T) {
	s := newTestWebhookStore(t)
	s.SetRetention(time.Hour)

	_, err := s.Seen("evt-1")
	require.NoError(t, err)
	require.NoError(t, s.db.ExecuteWrite(`UPDATE webhook_deliveries SET received_at = ? WHERE event_id = ?`,
		time.Now().UTC().Add(-2*time.Hour), "evt-1"))

	require.NoError(t, s.Prune())

	dup, err := s.Seen("evt-1")
	require.NoError(t, err)
	assert.False(t, dup, "pruned event should no longer be marked as seen")
}
