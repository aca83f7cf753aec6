package repo

import (
	"fmt"
	"time"

	"github.com/aragora-project/aragora-go/internal/sqlitekit"
)

const webhookSchema = `
CREATE TABLE IF NOT EXISTS webhook_deliveries (
	event_id TEXT PRIMARY KEY,
	received_at TIMESTAMP NOT NULL
);
`

// WebhookStore is an idempotency store keyed by inbound webhook event id
// (spec §4.11: "webhook idempotency store ... events outside the
// retention window are pruned").
type WebhookStore struct {
	db        *sqlitekit.DB
	retention time.Duration
}

// DefaultWebhookRetention is the idempotency window applied when none is
// configured.
const DefaultWebhookRetention = 24 * time.Hour

// OpenWebhookStore opens (creating if needed) the webhook idempotency
// store at dbPath.
func OpenWebhookStore(dbPath string) (*WebhookStore, error) {
	db, err := sqlitekit.Open(dbPath, webhookSchema)
	if err != nil {
		return nil, fmt.Errorf("repo: open webhook store: %w", err)
	}
	return &WebhookStore{db: db, retention: DefaultWebhookRetention}, nil
}

// Close closes the underlying store.
func (s *WebhookStore) Close() error { return s.db.Close() }

// SetRetention overrides the idempotency retention window.
func (s *WebhookStore) SetRetention(d time.Duration) { s.retention = d }

// Seen records eventID as delivered and reports whether it was already
// recorded (true means this delivery is a duplicate and should be
// dropped).
func (s *WebhookStore) Seen(eventID string) (bool, error) {
	res, err := s.db.SQL.Exec(`INSERT OR IGNORE INTO webhook_deliveries (event_id, received_at) VALUES (?, ?)`,
		eventID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("repo: record webhook delivery: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repo: rows affected: %w", err)
	}
	return rows == 0, nil
}

// Prune deletes delivery records older than the configured retention
// window, so the idempotency table doesn't grow unbounded.
func (s *WebhookStore) Prune() error {
	cutoff := time.Now().UTC().Add(-s.retention)
	return s.db.ExecuteWrite(`DELETE FROM webhook_deliveries WHERE received_at < ?`, cutoff)
}
