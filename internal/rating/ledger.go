package rating

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aragora-project/aragora-go/internal/logging"
)

// MatchRecord is the durable outcome of one scored debate (spec §3
// MatchRecord).
type MatchRecord struct {
	ID           string
	DebateID     string
	Winner       string
	Participants []string
	Scores       map[string]float64
	EloChanges   map[string]float64
	Timestamp    time.Time
	Domain       string
}

// ErrNoWinner is returned by RecordMatch when winner is empty: spec §3
// invariant (v) only records a match when the debate terminated with a
// winner, so a tie or abstained-out vote is deliberately not persisted.
var ErrNoWinner = errors.New("rating: no-winner match is not recorded")

// Ledger is the ELO rating store (spec §4.10/§4.11 RatingLedger).
type Ledger struct {
	db *DB
	k  float64
}

// NewLedger constructs a Ledger over db with K-factor k (DefaultK if 0).
func NewLedger(db *DB, k float64) *Ledger {
	if k == 0 {
		k = DefaultK
	}
	return &Ledger{db: db, k: k}
}

// currentRatings fetches (or defaults to DefaultElo) the rating for each
// of participants, within tx so the read is part of the same atomic
// update.
func (l *Ledger) currentRatings(tx *sql.Tx, participants []string) (map[string]float64, error) {
	ratings := make(map[string]float64, len(participants))
	for _, agent := range participants {
		var elo float64
		err := tx.QueryRow("SELECT elo FROM ratings WHERE agent_name = ?", agent).Scan(&elo)
		switch {
		case err == sql.ErrNoRows:
			ratings[agent] = DefaultElo
		case err != nil:
			return nil, fmt.Errorf("rating: fetch rating for %s: %w", agent, err)
		default:
			ratings[agent] = elo
		}
	}
	return ratings, nil
}

// RecordMatch applies the ELO update for one match and persists it
// atomically: an updated (or inserted) `ratings` row per participant, one
// `matches` row, one `match_participants` row per participant, and one
// `elo_change` row per participant, all within a single transaction
// (spec §4.10 "Persist in a single transaction", invariant (vi)).
func (l *Ledger) RecordMatch(debateID, winner string, participants []string, domain string) (*MatchRecord, error) {
	if winner == "" {
		return nil, ErrNoWinner
	}

	matchID := uuid.NewString()
	now := time.Now()
	var record *MatchRecord

	err := l.db.Transaction(func(tx *sql.Tx) error {
		ratings, err := l.currentRatings(tx, participants)
		if err != nil {
			return err
		}

		newRatings, deltas := ApplyUpdate(winner, ratings, l.k)

		if _, err := tx.Exec(
			"INSERT INTO matches (id, debate_id, winner, domain, created_at) VALUES (?, ?, ?, ?, ?)",
			matchID, debateID, winner, nullable(domain), now,
		); err != nil {
			return fmt.Errorf("rating: insert match: %w", err)
		}

		scores := make(map[string]float64, len(participants))
		for _, agent := range participants {
			score := 0.0
			if agent == winner {
				score = 1.0
			}
			scores[agent] = score

			if _, err := tx.Exec(
				"INSERT INTO match_participants (match_id, agent_name, score) VALUES (?, ?, ?)",
				matchID, agent, score,
			); err != nil {
				return fmt.Errorf("rating: insert match_participants: %w", err)
			}

			delta := deltas[agent]
			if _, err := tx.Exec(
				"INSERT INTO elo_changes (match_id, agent_name, delta) VALUES (?, ?, ?)",
				matchID, agent, delta,
			); err != nil {
				return fmt.Errorf("rating: insert elo_changes: %w", err)
			}

			wins, losses, draws := 0, 0, 0
			switch {
			case agent == winner:
				wins = 1
			case score == 0.5:
				draws = 1
			default:
				losses = 1
			}
			if _, err := tx.Exec(`
				INSERT INTO ratings (agent_name, elo, matches, wins, losses, draws)
				VALUES (?, ?, 1, ?, ?, ?)
				ON CONFLICT(agent_name) DO UPDATE SET
					elo = excluded.elo,
					matches = ratings.matches + 1,
					wins = ratings.wins + excluded.wins,
					losses = ratings.losses + excluded.losses,
					draws = ratings.draws + excluded.draws`,
				agent, newRatings[agent], wins, losses, draws,
			); err != nil {
				return fmt.Errorf("rating: upsert ratings: %w", err)
			}
		}

		record = &MatchRecord{
			ID:           matchID,
			DebateID:     debateID,
			Winner:       winner,
			Participants: participants,
			Scores:       scores,
			EloChanges:   deltas,
			Timestamp:    now,
			Domain:       domain,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.LogRatingEvent("match_recorded", matchID, map[string]interface{}{
		"debate_id": debateID,
		"winner":    winner,
	})
	return record, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetLeaderboard returns the top limit ratings ordered by elo descending
// (spec §4.10 "get_leaderboard(limit) orders by elo DESC").
func (l *Ledger) GetLeaderboard(limit int) ([]Rating, error) {
	rows, err := l.db.FetchAll(
		"SELECT agent_name, elo, matches, wins, losses, draws FROM ratings ORDER BY elo DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("rating: leaderboard query: %w", err)
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.AgentName, &r.Elo, &r.Matches, &r.Wins, &r.Losses, &r.Draws); err != nil {
			return nil, fmt.Errorf("rating: leaderboard scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetMatchHistory returns agent's most recent matches, newest first
// (spec §4.10 "get_match_history(agent, limit) orders by timestamp
// desc").
func (l *Ledger) GetMatchHistory(agent string, limit int) ([]MatchRecord, error) {
	rows, err := l.db.FetchAll(`
		SELECT m.id, m.debate_id, m.winner, COALESCE(m.domain, ''), m.created_at
		FROM matches m
		JOIN match_participants mp ON mp.match_id = m.id
		WHERE mp.agent_name = ?
		ORDER BY m.created_at DESC
		LIMIT ?`, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("rating: match history query: %w", err)
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(&rec.ID, &rec.DebateID, &rec.Winner, &rec.Domain, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("rating: match history scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		participants, scores, err := l.participantsFor(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Participants = participants
		records[i].Scores = scores

		deltas, err := l.eloChangesFor(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].EloChanges = deltas
	}
	return records, nil
}

func (l *Ledger) participantsFor(matchID string) ([]string, map[string]float64, error) {
	rows, err := l.db.FetchAll("SELECT agent_name, score FROM match_participants WHERE match_id = ?", matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("rating: participants query: %w", err)
	}
	defer rows.Close()

	var participants []string
	scores := make(map[string]float64)
	for rows.Next() {
		var agent string
		var score float64
		if err := rows.Scan(&agent, &score); err != nil {
			return nil, nil, fmt.Errorf("rating: participants scan: %w", err)
		}
		participants = append(participants, agent)
		scores[agent] = score
	}
	return participants, scores, rows.Err()
}

func (l *Ledger) eloChangesFor(matchID string) (map[string]float64, error) {
	rows, err := l.db.FetchAll("SELECT agent_name, delta FROM elo_changes WHERE match_id = ?", matchID)
	if err != nil {
		return nil, fmt.Errorf("rating: elo_changes query: %w", err)
	}
	defer rows.Close()

	deltas := make(map[string]float64)
	for rows.Next() {
		var agent string
		var delta float64
		if err := rows.Scan(&agent, &delta); err != nil {
			return nil, fmt.Errorf("rating: elo_changes scan: %w", err)
		}
		deltas[agent] = delta
	}
	return deltas, rows.Err()
}
