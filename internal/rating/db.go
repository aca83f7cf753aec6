// Package rating implements the ELO rating ledger described in spec
// §4.10: pairwise expected-score updates on match record, persisted
// atomically alongside match/participant/elo-change rows. The storage
// shape is ported from original_source's aragora/ranking/database.py
// EloDatabase (per-operation transactions, WAL mode, fetch_one/fetch_all/
// execute_write/transaction helpers), via the shared internal/sqlitekit
// open/transaction helper also used by internal/repo.
package rating

import (
	"database/sql"
	"fmt"

	"github.com/aragora-project/aragora-go/internal/logging"
	"github.com/aragora-project/aragora-go/internal/sqlitekit"
)

const schema = `
CREATE TABLE IF NOT EXISTS ratings (
	agent_name TEXT PRIMARY KEY,
	elo REAL NOT NULL DEFAULT 1500,
	matches INTEGER NOT NULL DEFAULT 0,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	draws INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS matches (
	id TEXT PRIMARY KEY,
	debate_id TEXT NOT NULL,
	winner TEXT,
	domain TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS match_participants (
	match_id TEXT NOT NULL REFERENCES matches(id),
	agent_name TEXT NOT NULL,
	score REAL NOT NULL,
	PRIMARY KEY (match_id, agent_name)
);

CREATE TABLE IF NOT EXISTS elo_changes (
	match_id TEXT NOT NULL REFERENCES matches(id),
	agent_name TEXT NOT NULL,
	delta REAL NOT NULL,
	PRIMARY KEY (match_id, agent_name)
);

CREATE INDEX IF NOT EXISTS idx_match_participants_agent ON match_participants(agent_name);
`

// DB wraps the ratings SQLite store.
type DB struct {
	kit *sqlitekit.DB
}

// Open creates (if needed) the ratings database at dbPath and ensures
// its schema, mirroring database.New's directory-creation and
// migration-on-open idiom.
func Open(dbPath string) (*DB, error) {
	kit, err := sqlitekit.Open(dbPath, schema)
	if err != nil {
		return nil, fmt.Errorf("rating: %w", err)
	}
	logging.LogDatabaseEvent("OPEN", "ratings", map[string]interface{}{"path": dbPath})
	return &DB{kit: kit}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.kit.Close()
}

// FetchAll runs query and returns the resulting rows for the caller to
// scan; the caller must Close() the returned *sql.Rows.
func (d *DB) FetchAll(query string, args ...any) (*sql.Rows, error) {
	return d.kit.FetchAll(query, args...)
}

// ExecuteWrite runs a single write statement outside any explicit
// transaction (auto-commit).
func (d *DB) ExecuteWrite(query string, args ...any) error {
	return d.kit.ExecuteWrite(query, args...)
}

// Transaction runs fn within a SQL transaction, committing on success
// and rolling back on any error or panic (spec §4.11 "auto-commit on
// success, rollback on exception").
func (d *DB) Transaction(fn func(tx *sql.Tx) error) error {
	return d.kit.Transaction(fn)
}
