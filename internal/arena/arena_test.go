package arena

import (
	"context"
	"testing"
	"time"

	"github.com/aragora-project/aragora-go/internal/agentcore"
	"github.com/aragora-project/aragora-go/internal/breaker"
	"github.com/aragora-project/aragora-go/internal/streamfabric"
	"github.com/aragora-project/aragora-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBackend struct {
	response string
}

func (f *fixedBackend) Generate(_ context.Context, _ string, _ []agentcore.Message) (string, error) {
	return f.response, nil
}

func newTestAgent(name, response string) *agentcore.Agent {
	cfg := agentcore.Config{Name: name, Role: types.RoleProposer, Timeout: time.Second}
	return agentcore.New(cfg, &fixedBackend{response: response}, nil)
}

func frozenClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestArenaReachesMajorityConsensus(t *testing.T) {
	alice := newTestAgent("alice", "I choose alice, confidence 0.9")
	bob := newTestAgent("bob", "I pick alice, confidence 0.8")

	now := time.Now()
	a := New(Config{
		DebateID:  "d1",
		Task:      "pick the best approach",
		Protocol:  Protocol{Rounds: 2, Consensus: types.ConsensusMajority, RequireMajority: true, EarlyStopping: true},
		Proposers: []*agentcore.Agent{alice, bob},
		Now:       frozenClock(now),
	})

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ConsensusReached)
	assert.Equal(t, "I choose alice, confidence 0.9", result.FinalAnswer)
	assert.Equal(t, 1, result.RoundsUsed)
	assert.Len(t, result.Messages, 2)
}

func TestArenaReachesUnanimousConsensus(t *testing.T) {
	alice := newTestAgent("alice", "I choose alice, confidence 0.9")
	bob := newTestAgent("bob", "I pick alice, confidence 0.8")

	a := New(Config{
		DebateID:  "d1u",
		Task:      "pick the best approach",
		Protocol:  Protocol{Rounds: 1, Consensus: types.ConsensusUnanimous, EarlyStopping: true},
		Proposers: []*agentcore.Agent{alice, bob},
		Now:       frozenClock(time.Now()),
	})

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ConsensusReached)
	assert.Equal(t, "alice", result.Winner)
}

func TestArenaDoesNotReachUnanimousConsensusOnSplitVote(t *testing.T) {
	alice := newTestAgent("alice", "I choose bob, confidence 0.9")
	bob := newTestAgent("bob", "I choose alice, confidence 0.9")

	a := New(Config{
		DebateID:  "d1s",
		Task:      "pick the best approach",
		Protocol:  Protocol{Rounds: 1, Consensus: types.ConsensusUnanimous, EarlyStopping: false},
		Proposers: []*agentcore.Agent{alice, bob},
		Now:       frozenClock(time.Now()),
	})

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.ConsensusReached)
}

func TestArenaVoteSplitIsTieNotArbitraryWinner(t *testing.T) {
	alice := newTestAgent("alice", "I choose bob, confidence 0.9")
	bob := newTestAgent("bob", "I choose alice, confidence 0.9")

	a := New(Config{
		DebateID:  "d1t",
		Task:      "pick the best approach",
		Protocol:  Protocol{Rounds: 1, RequireMajority: false, MinMargin: 0, EarlyStopping: false},
		Proposers: []*agentcore.Agent{alice, bob},
		Now:       frozenClock(time.Now()),
	})

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.ConsensusReached)
	assert.Equal(t, "", result.Winner)
}

func TestArenaRunsAllRoundsWithoutConsensus(t *testing.T) {
	alice := newTestAgent("alice", "I select bob, confidence 0.6")
	bob := newTestAgent("bob", "I select alice, confidence 0.6")

	a := New(Config{
		DebateID:  "d2",
		Task:      "pick the best approach",
		Protocol:  Protocol{Rounds: 2, RequireMajority: true, EarlyStopping: false},
		Proposers: []*agentcore.Agent{alice, bob},
		Now:       frozenClock(time.Now()),
	})

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.ConsensusReached)
	assert.Equal(t, 2, result.RoundsUsed)
}

func TestArenaEmitsDebateStartAndEnd(t *testing.T) {
	alice := newTestAgent("alice", "I choose alice, confidence 0.7")

	emitter := streamfabric.NewEventEmitter("d3")
	a := New(Config{
		DebateID:  "d3",
		Task:      "pick one",
		Protocol:  Protocol{Rounds: 1, EarlyStopping: true},
		Proposers: []*agentcore.Agent{alice},
		Emitter:   emitter,
		Now:       frozenClock(time.Now()),
	})

	_, err := a.Run(context.Background())
	require.NoError(t, err)

	events := emitter.Drain()
	require.NotEmpty(t, events)
	assert.Equal(t, streamfabric.EventDebateStart, events[0].Kind)
	assert.Equal(t, streamfabric.EventDebateEnd, events[len(events)-1].Kind)
}

func TestArenaSkipsCircuitOpenProposer(t *testing.T) {
	alice := newTestAgent("alice", "I choose alice, confidence 0.9")
	bob := newTestAgent("bob", "I choose alice, confidence 0.9")

	br := breaker.New(breaker.DefaultConfig())
	for i := 0; i < 3; i++ {
		br.RecordFailure("alice")
	}
	a := New(Config{
		DebateID:  "d4",
		Task:      "pick one",
		Protocol:  Protocol{Rounds: 1, EarlyStopping: true},
		Proposers: []*agentcore.Agent{alice, bob},
		Breaker:   br,
		Now:       frozenClock(time.Now()),
	})

	result, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Messages, 1)
	assert.Equal(t, "bob", result.Messages[0].Agent)
}
