// Package repo implements the debate archive, memory, reflection
// schedule, and webhook idempotency repositories described in spec
// §4.11. Each repository owns its own SQLite file under the persisted
// state directory (spec §6 "Persisted state": debates.db, memory.db,
// webhook.db — ratings.db is internal/rating's), opened through the
// shared internal/sqlitekit helper so every store gets the same
// WAL-mode, bounded-connection, auto-commit/rollback behaviour (spec
// §4.11). Grounded on internal/database/database.go's driver-open idiom
// and original_source/aragora/ranking/database.py's repository shape.
package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aragora-project/aragora-go/internal/sqlitekit"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS debates (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL,
	task TEXT NOT NULL,
	final_answer TEXT,
	consensus_reached INTEGER NOT NULL DEFAULT 0,
	rounds_used INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	artifact BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_debates_started_at ON debates(started_at);
`

// DebateRecord is the archive's row shape: queryable columns plus the
// full DebateResult artifact serialized as JSON (spec §3 DebateResult:
// "Written once; read many").
type DebateRecord struct {
	ID               string
	Slug             string
	Task             string
	FinalAnswer      string
	ConsensusReached bool
	RoundsUsed       int
	StartedAt        time.Time
	EndedAt          time.Time
	Artifact         json.RawMessage
}

// ArchiveRepository persists completed debate artifacts.
type ArchiveRepository struct {
	db *sqlitekit.DB
}

// OpenArchive opens (creating if needed) the debate archive at dbPath.
func OpenArchive(dbPath string) (*ArchiveRepository, error) {
	db, err := sqlitekit.Open(dbPath, archiveSchema)
	if err != nil {
		return nil, fmt.Errorf("repo: open archive: %w", err)
	}
	return &ArchiveRepository{db: db}, nil
}

// Close closes the underlying store.
func (r *ArchiveRepository) Close() error { return r.db.Close() }

// Save inserts or replaces a debate record (spec §3: "Written once"; a
// replace covers the re-run/resume case rather than forbidding it
// outright).
func (r *ArchiveRepository) Save(rec DebateRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return r.db.ExecuteWrite(`
		INSERT INTO debates (id, slug, task, final_answer, consensus_reached, rounds_used, started_at, ended_at, artifact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			task = excluded.task,
			final_answer = excluded.final_answer,
			consensus_reached = excluded.consensus_reached,
			rounds_used = excluded.rounds_used,
			ended_at = excluded.ended_at,
			artifact = excluded.artifact`,
		rec.ID, rec.Slug, rec.Task, rec.FinalAnswer, boolToInt(rec.ConsensusReached), rec.RoundsUsed,
		rec.StartedAt, nullableTime(rec.EndedAt), []byte(rec.Artifact),
	)
}

// Get fetches one debate record by id.
func (r *ArchiveRepository) Get(id string) (*DebateRecord, error) {
	rows, err := r.db.FetchAll(`
		SELECT id, slug, task, final_answer, consensus_reached, rounds_used, started_at, ended_at, artifact
		FROM debates WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("repo: get debate: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	rec, err := scanDebateRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, rows.Err()
}

// List returns recent debates newest-first, paginated (spec §6 "Listing
// endpoints paginate with limit ... and offset").
func (r *ArchiveRepository) List(limit, offset int) ([]DebateRecord, error) {
	rows, err := r.db.FetchAll(`
		SELECT id, slug, task, final_answer, consensus_reached, rounds_used, started_at, ended_at, artifact
		FROM debates ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repo: list debates: %w", err)
	}
	defer rows.Close()

	var out []DebateRecord
	for rows.Next() {
		rec, err := scanDebateRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanDebateRecord(rows *sql.Rows) (DebateRecord, error) {
	var rec DebateRecord
	var consensus int
	var endedAt sql.NullTime
	var artifact []byte
	if err := rows.Scan(&rec.ID, &rec.Slug, &rec.Task, &rec.FinalAnswer, &consensus, &rec.RoundsUsed,
		&rec.StartedAt, &endedAt, &artifact); err != nil {
		return DebateRecord{}, fmt.Errorf("repo: scan debate: %w", err)
	}
	rec.ConsensusReached = consensus != 0
	if endedAt.Valid {
		rec.EndedAt = endedAt.Time
	}
	rec.Artifact = json.RawMessage(artifact)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
