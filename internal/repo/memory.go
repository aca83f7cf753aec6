package repo

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aragora-project/aragora-go/internal/similarity"
	"github.com/aragora-project/aragora-go/internal/sqlitekit"
)

const memorySchema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	agent_name TEXT NOT NULL,
	memory_type TEXT NOT NULL,
	content TEXT NOT NULL,
	importance REAL NOT NULL DEFAULT 0.5,
	debate_id TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_name);

CREATE TABLE IF NOT EXISTS reflection_schedule (
	agent_name TEXT PRIMARY KEY,
	memories_since_reflection INTEGER NOT NULL DEFAULT 0,
	last_reflected_at TIMESTAMP
);
`

// Memory type tags (spec §4.11 MemoryEntity.memory_type).
const (
	MemoryObservation = "observation"
	MemoryReflection  = "reflection"
	MemoryInsight     = "insight"
)

// MemoryEntity is one stored memory belonging to an agent.
type MemoryEntity struct {
	ID         string
	AgentName  string
	MemoryType string
	Content    string
	Importance float64
	DebateID   string
	CreatedAt  time.Time
}

// RankWeights controls the retrieval scoring blend (spec §4.11:
// "ranked by α·importance + β·recency + γ·relevance").
type RankWeights struct {
	Alpha, Beta, Gamma float64
}

// DefaultRankWeights weighs the three factors equally.
func DefaultRankWeights() RankWeights {
	return RankWeights{Alpha: 1.0 / 3, Beta: 1.0 / 3, Gamma: 1.0 / 3}
}

// DefaultHalfLife is the recency decay half-life (spec §4.11: "recency =
// exp(-age_hours/half_life)").
const DefaultHalfLife = 72 * time.Hour

// MemoryRepository stores and ranks agent memories for reflection-driven
// retrieval (spec §4.11), grounded on original_source's
// aragora/memory package shape (only its __init__.py export list
// survived into the retrieval pack, so the ranking formula here follows
// spec.md's explicit prose rather than ported code).
type MemoryRepository struct {
	db       *sqlitekit.DB
	backend  similarity.Backend
	halfLife time.Duration
	weights  RankWeights
}

// OpenMemory opens (creating if needed) the memory store at dbPath. A nil
// backend falls back to the dependency-free token-Jaccard relevance score.
func OpenMemory(dbPath string, backend similarity.Backend) (*MemoryRepository, error) {
	db, err := sqlitekit.Open(dbPath, memorySchema)
	if err != nil {
		return nil, fmt.Errorf("repo: open memory: %w", err)
	}
	if backend == nil {
		backend = similarity.NewTokenJaccardBackend()
	}
	return &MemoryRepository{db: db, backend: backend, halfLife: DefaultHalfLife, weights: DefaultRankWeights()}, nil
}

// Close closes the underlying store.
func (r *MemoryRepository) Close() error { return r.db.Close() }

// SetHalfLife overrides the recency decay half-life.
func (r *MemoryRepository) SetHalfLife(d time.Duration) { r.halfLife = d }

// SetWeights overrides the ranking blend.
func (r *MemoryRepository) SetWeights(w RankWeights) { r.weights = w }

// Insert records a new memory and advances the agent's reflection
// counter (spec §4.11: "every stored memory increments
// memories_since_reflection").
func (r *MemoryRepository) Insert(m MemoryEntity) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := r.db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO memories (id, agent_name, memory_type, content, importance, debate_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.AgentName, m.MemoryType, m.Content, m.Importance, nullableString(m.DebateID), m.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO reflection_schedule (agent_name, memories_since_reflection)
			VALUES (?, 1)
			ON CONFLICT(agent_name) DO UPDATE SET
				memories_since_reflection = memories_since_reflection + 1`,
			m.AgentName,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("repo: insert memory: %w", err)
	}
	return m.ID, nil
}

type scoredMemory struct {
	entity MemoryEntity
	score  float64
}

// Retrieve returns the agent's memories ranked by α·importance +
// β·recency + γ·relevance, most relevant first. query may be empty, in
// which case relevance contributes nothing and ranking falls back to
// importance/recency only.
func (r *MemoryRepository) Retrieve(ctx context.Context, agent, query string, limit int) ([]MemoryEntity, error) {
	rows, err := r.db.FetchAll(`
		SELECT id, agent_name, memory_type, content, importance, debate_id, created_at
		FROM memories WHERE agent_name = ?`, agent)
	if err != nil {
		return nil, fmt.Errorf("repo: retrieve memories: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var scored []scoredMemory
	for rows.Next() {
		var m MemoryEntity
		var debateID sql.NullString
		if err := rows.Scan(&m.ID, &m.AgentName, &m.MemoryType, &m.Content, &m.Importance, &debateID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repo: scan memory: %w", err)
		}
		if debateID.Valid {
			m.DebateID = debateID.String
		}

		ageHours := now.Sub(m.CreatedAt).Hours()
		recency := math.Exp(-ageHours / r.halfLife.Hours())

		relevance := 0.0
		if query != "" {
			relevance, err = r.backend.ComputeSimilarity(ctx, query, m.Content)
			if err != nil {
				return nil, fmt.Errorf("repo: compute relevance: %w", err)
			}
		}

		score := r.weights.Alpha*m.Importance + r.weights.Beta*recency + r.weights.Gamma*relevance
		scored = append(scored, scoredMemory{entity: m, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]MemoryEntity, len(scored))
	for i, s := range scored {
		out[i] = s.entity
	}
	return out, nil
}

// ShouldReflect reports whether agent has accumulated at least threshold
// unreflected memories (spec §4.11: "should_reflect(agent, threshold)").
func (r *MemoryRepository) ShouldReflect(agent string, threshold int) (bool, error) {
	rows, err := r.db.FetchAll(`SELECT memories_since_reflection FROM reflection_schedule WHERE agent_name = ?`, agent)
	if err != nil {
		return false, fmt.Errorf("repo: should_reflect: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return false, nil
	}
	var count int
	if err := rows.Scan(&count); err != nil {
		return false, fmt.Errorf("repo: scan reflection count: %w", err)
	}
	return count >= threshold, rows.Err()
}

// MarkReflected resets agent's unreflected-memory counter to zero (spec
// §4.11: "mark_reflected").
func (r *MemoryRepository) MarkReflected(agent string) error {
	now := time.Now().UTC()
	return r.db.ExecuteWrite(`
		INSERT INTO reflection_schedule (agent_name, memories_since_reflection, last_reflected_at)
		VALUES (?, 0, ?)
		ON CONFLICT(agent_name) DO UPDATE SET
			memories_since_reflection = 0,
			last_reflected_at = excluded.last_reflected_at`,
		agent, now,
	)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
