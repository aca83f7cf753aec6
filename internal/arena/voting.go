// Package arena implements the debate state machine (spec §4.8):
// PROPOSE → CRITIQUE → REVISE → VOTE → (JUDGE) → consensus check, repeated
// per round with early termination on convergence. It generalizes
// server.DebateManager's round-loop/timeout skeleton and
// conversation.DebateSession's mutex-guarded session state. Vote grouping
// and winner determination are ported method-for-method from
// original_source's aragora/debate/phases/voting.py.
package arena

import (
	"context"
	"sort"

	"github.com/aragora-project/aragora-go/internal/agentcore"
	"github.com/aragora-project/aragora-go/internal/similarity"
	"github.com/aragora-project/aragora-go/internal/types"
)

// Vote is one agent's decision among proposals (spec §3 Vote).
type Vote struct {
	Agent          string
	Choice         string
	Reasoning      string
	Confidence     float64
	ContinueDebate bool
}

// GroupSimilarVotes canonicalizes vote choices by pairwise similarity,
// ported from voting.py's group_similar_votes: an O(n^2) scan over
// distinct choices optimized with an "unassigned" set so already-grouped
// candidates are skipped. Returns only groups with more than one member.
func GroupSimilarVotes(ctx context.Context, votes []Vote, backend similarity.Backend, threshold float64) map[string][]string {
	if backend == nil || len(votes) == 0 {
		return map[string][]string{}
	}

	seen := make(map[string]bool)
	var choices []string
	for _, v := range votes {
		if !seen[v.Choice] {
			seen[v.Choice] = true
			choices = append(choices, v.Choice)
		}
	}
	if len(choices) < 2 {
		return map[string][]string{}
	}

	unassigned := make(map[string]bool, len(choices))
	for _, c := range choices {
		unassigned[c] = true
	}

	groups := make(map[string][]string)
	order := choices
	for _, canonical := range order {
		if !unassigned[canonical] {
			continue
		}
		delete(unassigned, canonical)
		members := []string{canonical}

		for _, other := range order {
			if !unassigned[other] {
				continue
			}
			sim, err := backend.ComputeSimilarity(ctx, canonical, other)
			if err != nil {
				continue
			}
			if sim >= threshold {
				members = append(members, other)
				delete(unassigned, other)
			}
		}
		groups[canonical] = members
	}

	out := make(map[string][]string)
	for canonical, members := range groups {
		if len(members) > 1 {
			out[canonical] = members
		}
	}
	return out
}

// ApplyVoteGrouping rewrites each vote's choice to its group's canonical
// key, leaving ungrouped choices untouched.
func ApplyVoteGrouping(votes []Vote, groups map[string][]string) []Vote {
	reverse := make(map[string]string)
	for canonical, members := range groups {
		for _, m := range members {
			reverse[m] = canonical
		}
	}
	out := make([]Vote, len(votes))
	for i, v := range votes {
		if canonical, ok := reverse[v.Choice]; ok {
			v.Choice = canonical
		}
		out[i] = v
	}
	return out
}

// ChoiceStats is the per-choice tally returned by ComputeVoteDistribution.
type ChoiceStats struct {
	Count         int
	Percentage    float64
	Voters        []string
	AvgConfidence float64
}

// ComputeVoteDistribution tallies votes by choice (spec §4.8 step 4).
func ComputeVoteDistribution(votes []Vote) map[string]ChoiceStats {
	dist := make(map[string]ChoiceStats)
	total := len(votes)
	if total == 0 {
		return dist
	}

	type accum struct {
		count   int
		voters  []string
		confSum float64
	}
	accums := make(map[string]*accum)
	for _, v := range votes {
		a, ok := accums[v.Choice]
		if !ok {
			a = &accum{}
			accums[v.Choice] = a
		}
		a.count++
		a.voters = append(a.voters, v.Agent)
		a.confSum += v.Confidence
	}

	for choice, a := range accums {
		dist[choice] = ChoiceStats{
			Count:         a.count,
			Percentage:    100 * float64(a.count) / float64(total),
			Voters:        a.voters,
			AvgConfidence: a.confSum / float64(a.count),
		}
	}
	return dist
}

// SuperMajorityThreshold is the fraction of votes the winner must clear
// under Consensus == super-majority (spec §4.8 "consensus ∈ {...,
// super-majority}").
const SuperMajorityThreshold = 2.0 / 3.0

// DetermineWinner applies the consensus rule selected by mode to votes
// (spec §4.8 step 4), returning the winning choice and whether one was
// found. A clean top count wins; a tie for first place never yields a
// winner regardless of mode, matching original_source's replay.py
// reporting "Tie" whenever the top two choices are level (spec §8
// scenario 2).
func DetermineWinner(votes []Vote, mode types.ConsensusMode, requireMajority bool, minMargin float64) (string, bool) {
	dist := ComputeVoteDistribution(votes)
	if len(dist) == 0 {
		return "", false
	}

	type entry struct {
		choice string
		stats  ChoiceStats
	}
	entries := make([]entry, 0, len(dist))
	for choice, stats := range dist {
		entries = append(entries, entry{choice, stats})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].stats.Count > entries[j].stats.Count
	})

	if len(entries) > 1 && entries[0].stats.Count == entries[1].stats.Count {
		return "", false
	}

	winner := entries[0]

	switch mode {
	case types.ConsensusJudge:
		// The JUDGE stage alone decides the winner in this mode; see
		// Arena.Run's finalize step (spec §4.8 step 5).
		return "", false

	case types.ConsensusUnanimous:
		if len(entries) > 1 {
			return "", false
		}
		return winner.choice, true

	case types.ConsensusSuperMajority:
		if winner.stats.Percentage < SuperMajorityThreshold*100 {
			return "", false
		}
		return winner.choice, true
	}

	if requireMajority && winner.stats.Percentage <= 50 {
		return "", false
	}

	if minMargin > 0 {
		runnerUpPct := 0.0
		if len(entries) > 1 {
			runnerUpPct = entries[1].stats.Percentage
		}
		if (winner.stats.Percentage-runnerUpPct)/100 < minMargin {
			return "", false
		}
	}

	return winner.choice, true
}

// CollectVotes runs Agent.Vote for each voter concurrently-safe (spec
// §4.8 step 4), normalizing unrecognized choices to the abstain sentinel.
func CollectVotes(ctx context.Context, voters []*agentcore.Agent, proposals map[string]string, task string, participants []string) []Vote {
	votes := make([]Vote, 0, len(voters))
	for _, voter := range voters {
		result, err := voter.Vote(ctx, proposals, task)
		if err != nil {
			continue
		}
		choice := types.ValidateChoice(result.Choice, participants)
		votes = append(votes, Vote{
			Agent:      voter.Name(),
			Choice:     choice,
			Reasoning:  result.Reasoning,
			Confidence: types.Clamp01(result.Confidence),
		})
	}
	return votes
}
