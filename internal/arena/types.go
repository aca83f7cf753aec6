package arena

import (
	"time"

	"github.com/aragora-project/aragora-go/internal/types"
)

// Status is the Arena's finite-state-machine stage (spec §4.8).
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusPropose    Status = "PROPOSE"
	StatusCritique   Status = "CRITIQUE"
	StatusRevise     Status = "REVISE"
	StatusVote       Status = "VOTE"
	StatusJudge      Status = "JUDGE"
	StatusTerminated Status = "TERMINATED"
)

// Protocol holds the tunable parameters governing a debate (spec §4.8
// "Protocol parameters").
type Protocol struct {
	Rounds                int
	Consensus             types.ConsensusMode
	EarlyStopping         bool
	VoteGrouping          bool
	VoteGroupingThreshold float64
	ProposerCount         int
	RequireMajority       bool
	MinMargin             float64
	ReviseAfterRoundOne   bool
}

// DefaultProtocol returns the spec-mandated defaults.
func DefaultProtocol() Protocol {
	return Protocol{
		Rounds:                3,
		Consensus:             types.ConsensusMajority,
		EarlyStopping:         true,
		VoteGrouping:          true,
		VoteGroupingThreshold: 0.80,
		ProposerCount:         2,
		RequireMajority:       false,
		MinMargin:             0,
		ReviseAfterRoundOne:   false,
	}
}

// Message is one append-only turn within a debate (spec §3 Message).
type Message struct {
	Round     int
	Role      string
	Agent     string
	Content   string
	Timestamp time.Time
}

// CritiqueRecord is the persisted form of an Agent.Critique result,
// attributed to the critic and the critiqued agent (spec §3 Critique).
type CritiqueRecord struct {
	Agent         string
	TargetAgent   string
	TargetContent string
	Issues        []string
	Suggestions   []string
	Severity      float64
	Reasoning     string
}

// Result is the durable debate artifact (spec §3 DebateResult), written
// once at DEBATE_END and handed to the archive repository.
type Result struct {
	ID                string
	Slug              string
	Task              string
	Agents            []string
	Messages          []Message
	Critiques         []CritiqueRecord
	Votes             []Vote
	Winner            string
	FinalAnswer       string
	Confidence        float64
	ConsensusReached  bool
	RoundsUsed        int
	DurationSeconds   float64
	ConvergenceStatus string
	ConsensusStrength float64
	WinningPatterns   []string
	DissentingViews   []string
	StartedAt         time.Time
	EndedAt           time.Time
	GroundedVerdict   string
}
