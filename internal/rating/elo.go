package rating

import "math"

// DefaultElo is the rating assigned to an agent with no match history
// (spec §3 Rating: "elo (default 1500)").
const DefaultElo = 1500.0

// DefaultK is the fixed K-factor applied to every rating update (spec
// §4.10: "K defaults to 32, configurable"; §REDESIGN/open-questions:
// "a simple fixed K=32 is acceptable for a first implementation").
const DefaultK = 32.0

// Rating is one agent's current standing (spec §3 Rating).
type Rating struct {
	AgentName string
	Elo       float64
	Matches   int
	Wins      int
	Losses    int
	Draws     int
}

// ExpectedScore computes agent i's expected score against agent j from
// their current ratings (spec §4.10: "Eᵢ = 1/(1+10^((Rⱼ-Rᵢ)/400))").
func ExpectedScore(ri, rj float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rj-ri)/400.0))
}

// outcome is one participant's expected/actual score pair for a single
// match, ready for the K-factor update.
type outcome struct {
	agent    string
	expected float64
	actual   float64
}

// computeOutcomes implements spec §4.10's pairwise winner-vs-each-loser
// decomposition: the winner's expected/actual score is averaged across
// every loser it's compared against; each loser is compared only against
// the winner, not against other losers. For the two-participant case
// this degenerates to classic pairwise Elo.
func computeOutcomes(winner string, ratings map[string]float64) []outcome {
	var losers []string
	for agent := range ratings {
		if agent != winner {
			losers = append(losers, agent)
		}
	}
	if len(losers) == 0 {
		return nil
	}

	winnerExpected := 0.0
	for _, loser := range losers {
		winnerExpected += ExpectedScore(ratings[winner], ratings[loser])
	}
	winnerExpected /= float64(len(losers))

	outcomes := []outcome{{agent: winner, expected: winnerExpected, actual: 1.0}}
	for _, loser := range losers {
		loserExpected := ExpectedScore(ratings[loser], ratings[winner])
		outcomes = append(outcomes, outcome{agent: loser, expected: loserExpected, actual: 0.0})
	}
	return outcomes
}

// ApplyUpdate computes each participant's new rating and delta for one
// match (spec §4.10: "Rᵢ' = Rᵢ + K·(Sᵢ-Eᵢ)"). ratings must contain every
// participant's current Elo, including winner.
func ApplyUpdate(winner string, ratings map[string]float64, k float64) (newRatings map[string]float64, deltas map[string]float64) {
	outcomes := computeOutcomes(winner, ratings)
	newRatings = make(map[string]float64, len(ratings))
	deltas = make(map[string]float64, len(ratings))
	for agent, elo := range ratings {
		newRatings[agent] = elo
	}
	for _, o := range outcomes {
		delta := k * (o.actual - o.expected)
		deltas[o.agent] = delta
		newRatings[o.agent] = ratings[o.agent] + delta
	}
	return newRatings, deltas
}
