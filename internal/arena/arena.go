package arena

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aragora-project/aragora-go/internal/agentcore"
	"github.com/aragora-project/aragora-go/internal/breaker"
	"github.com/aragora-project/aragora-go/internal/similarity"
	"github.com/aragora-project/aragora-go/internal/streamfabric"
	"github.com/aragora-project/aragora-go/internal/types"
)

// SeverityCalibrator optionally cross-checks a critique's self-reported
// severity against an independent judgment before it is recorded (spec
// §4.8 step 2). A nil Calibrator disables the cross-check; CRITIQUE then
// uses each critic's own parsed severity unmodified.
type SeverityCalibrator interface {
	Calibrate(ctx context.Context, task string, issues []string, selfSeverity float64) (float64, error)
}

// MaxDebateDuration bounds a single Run call, mirroring
// server.DebateManager's 15-minute hard timeout.
const MaxDebateDuration = 15 * time.Minute

// InactivityTimeout ends a debate early if no round makes progress for
// this long, mirroring server.DebateManager's 5-minute watchdog.
const InactivityTimeout = 5 * time.Minute

// maxConcurrentAgents bounds per-phase fan-out (spec §4.8: "bounded
// agent fan-out concurrency"). The teacher has no concurrent-fan-out
// precedent to generalize beyond its single conversationWg
// sync.WaitGroup, so this reuses that same WaitGroup+semaphore shape at
// a fixed width rather than pulling in a fan-out library the pack never
// imports.
const maxConcurrentAgents = 4

// fanOut runs worker(item) for every item in items, bounded to at most
// maxConcurrentAgents concurrent goroutines, and waits for all to finish.
func fanOut[T any](items []T, worker func(T)) {
	sem := make(chan struct{}, maxConcurrentAgents)
	var wg sync.WaitGroup
	for _, item := range items {
		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			worker(item)
		}()
	}
	wg.Wait()
}

// Config wires one Arena run: the agents playing each role, the protocol
// parameters governing round count and consensus rules, and the shared
// infrastructure (breaker, emitter, inbox, similarity backend) the round
// loop drives.
type Config struct {
	DebateID  string
	Slug      string
	Task      string
	Protocol  Protocol
	Proposers []*agentcore.Agent
	Critics   []*agentcore.Agent
	Judge     *agentcore.Agent
	Breaker    *breaker.Breaker
	Emitter    *streamfabric.EventEmitter
	Inbox      *streamfabric.Inbox
	Backend    similarity.Backend
	Calibrator SeverityCalibrator
	Now        func() time.Time
}

// Arena runs one debate's PROPOSE → CRITIQUE → REVISE → VOTE → (JUDGE)
// round loop to termination (spec §4.8). It generalizes
// server.DebateManager's goroutine/timeout/watchdog skeleton, replacing
// the teacher's HP-based comparative game score with round-based
// consensus and convergence tracking.
type Arena struct {
	mu sync.Mutex

	cfg         Config
	status      Status
	round       int
	messages    []Message
	critiques   []CritiqueRecord
	votes       []Vote
	proposals   map[string]string
	convergence *ConvergenceScorer
	startedAt   time.Time
	now         func() time.Time
}

// New constructs an Arena ready to Run. Unset protocol fields fall back
// to DefaultProtocol's values where that makes sense (zero Rounds means
// "use the default").
func New(cfg Config) *Arena {
	if cfg.Protocol.Rounds == 0 {
		cfg.Protocol = DefaultProtocol()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Breaker == nil {
		cfg.Breaker = breaker.New(breaker.DefaultConfig())
	}
	if cfg.Emitter == nil {
		cfg.Emitter = streamfabric.NewEventEmitter(cfg.DebateID)
	}
	threshold := cfg.Protocol.VoteGroupingThreshold
	if threshold == 0 {
		threshold = 0.80
		cfg.Protocol.VoteGroupingThreshold = threshold
	}
	convergenceBackend := cfg.Backend
	if convergenceBackend == nil {
		convergenceBackend = similarity.NewTokenJaccardBackend()
	}
	return &Arena{
		cfg:         cfg,
		status:      StatusIdle,
		proposals:   make(map[string]string),
		convergence: NewConvergenceScorer(convergenceBackend, threshold),
		now:         cfg.Now,
	}
}

// Status returns the Arena's current FSM stage.
func (a *Arena) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Round returns the current (1-indexed) round number.
func (a *Arena) Round() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.round
}

func (a *Arena) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Arena) emit(kind streamfabric.EventKind, round int, agent string, data any) {
	a.cfg.Emitter.Emit(streamfabric.StreamEvent{
		Kind:      kind,
		Data:      data,
		Timestamp: a.now(),
		Round:     round,
		Agent:     agent,
		LoopID:    a.cfg.DebateID,
	})
}

// Run drives the debate to termination and returns the durable result
// artifact. Callers that want the teacher's fire-and-forget goroutine
// shape should invoke Run inside their own `go func() { ... }()`; Run
// itself recovers panics so a single agent failure cannot crash the
// caller, surfacing an EventError instead (spec §4.8, §7).
func (a *Arena) Run(ctx context.Context) (result *Result, err error) {
	a.startedAt = a.now()
	ctx, cancel := context.WithTimeout(ctx, MaxDebateDuration)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.setStatus(StatusTerminated)
			a.emit(streamfabric.EventError, a.round, "", fmt.Sprintf("panic: %v", r))
			err = fmt.Errorf("arena: recovered panic: %v", r)
		}
	}()

	a.emit(streamfabric.EventDebateStart, 0, "", a.cfg.Task)
	lastProgress := a.now()

	consensusReached := false
	var winner string
	var convergenceStatus string
	var consensusStrength float64

	for round := 1; round <= a.cfg.Protocol.Rounds; round++ {
		select {
		case <-ctx.Done():
			convergenceStatus = "timeout"
			goto finalize
		default:
		}
		if a.now().Sub(lastProgress) >= InactivityTimeout {
			convergenceStatus = "inactive"
			goto finalize
		}

		a.mu.Lock()
		a.round = round
		a.mu.Unlock()
		a.emit(streamfabric.EventRoundStart, round, "", nil)

		a.runPropose(ctx, round)
		a.runCritique(ctx, round)
		if round > 1 || a.cfg.Protocol.ReviseAfterRoundOne {
			a.runRevise(ctx, round)
		}
		winVotes := a.runVote(ctx, round)

		a.drainAudience(round)

		avgSim, converged := a.convergence.Score(ctx, a.proposalsSnapshot())
		consensusStrength = avgSim
		if converged {
			convergenceStatus = "converged"
		} else {
			convergenceStatus = "active"
		}

		if w, ok := DetermineWinner(winVotes, a.cfg.Protocol.Consensus, a.cfg.Protocol.RequireMajority, a.cfg.Protocol.MinMargin); ok {
			winner = w
			consensusReached = true
			a.emit(streamfabric.EventConsensus, round, "", w)
		}

		lastProgress = a.now()

		if a.cfg.Protocol.EarlyStopping && (consensusReached || converged) {
			break
		}
	}

finalize:
	if a.cfg.Judge != nil && a.cfg.Protocol.Consensus == types.ConsensusJudge && !consensusReached {
		if w := a.runJudge(ctx); w != "" {
			winner = w
			consensusReached = true
		}
	}

	a.setStatus(StatusTerminated)
	endedAt := a.now()
	a.emit(streamfabric.EventDebateEnd, a.round, "", winner)

	finalAnswer, _ := a.proposalAt(winner)
	agents := make([]string, 0, len(a.cfg.Proposers))
	for _, p := range a.cfg.Proposers {
		agents = append(agents, p.Name())
	}

	return &Result{
		ID:                a.cfg.DebateID,
		Slug:              a.cfg.Slug,
		Task:              a.cfg.Task,
		Agents:            agents,
		Messages:          a.messagesSnapshot(),
		Critiques:         a.critiquesSnapshot(),
		Votes:             a.votesSnapshot(),
		Winner:            winner,
		FinalAnswer:       finalAnswer,
		Confidence:        consensusStrength,
		ConsensusReached:  consensusReached,
		RoundsUsed:        a.round,
		DurationSeconds:   endedAt.Sub(a.startedAt).Seconds(),
		ConvergenceStatus: convergenceStatus,
		ConsensusStrength: consensusStrength,
		StartedAt:         a.startedAt,
		EndedAt:           endedAt,
	}, nil
}

func (a *Arena) runPropose(ctx context.Context, round int) {
	a.setStatus(StatusPropose)
	available := a.cfg.Breaker.FilterAvailable(agentNames(a.cfg.Proposers))
	var live []*agentcore.Agent
	for _, agent := range a.cfg.Proposers {
		if !contains(available, agent.Name()) {
			a.emit(streamfabric.EventLogMessage, round, agent.Name(), "skipped: circuit open")
			continue
		}
		live = append(live, agent)
	}
	history := a.history()

	fanOut(live, func(agent *agentcore.Agent) {
		prompt := a.cfg.Task
		if prior, ok := a.proposalAt(agent.Name()); ok {
			prompt = fmt.Sprintf("Task: %s\n\nYour previous proposal:\n%s\n\nRefine it.", a.cfg.Task, prior)
		}
		content, err := agent.Generate(ctx, prompt, history)
		if err != nil {
			a.emit(streamfabric.EventError, round, agent.Name(), err.Error())
			return
		}
		a.mu.Lock()
		a.proposals[agent.Name()] = content
		a.messages = append(a.messages, Message{Round: round, Role: "proposer", Agent: agent.Name(), Content: content, Timestamp: a.now()})
		a.mu.Unlock()
		a.emit(streamfabric.EventAgentMessage, round, agent.Name(), content)
	})
}

type critiqueJob struct {
	critic  *agentcore.Agent
	target  string
	content string
}

func (a *Arena) runCritique(ctx context.Context, round int) {
	a.setStatus(StatusCritique)
	if len(a.cfg.Critics) == 0 {
		return
	}
	snapshot := a.proposalsSnapshot()

	var jobs []critiqueJob
	for _, critic := range a.cfg.Critics {
		if !a.cfg.Breaker.CanProceed(critic.Name()) {
			continue
		}
		for targetAgent, targetContent := range snapshot {
			if targetAgent == critic.Name() {
				continue
			}
			jobs = append(jobs, critiqueJob{critic: critic, target: targetAgent, content: targetContent})
		}
	}

	fanOut(jobs, func(job critiqueJob) {
		crit, err := job.critic.Critique(ctx, job.content, a.cfg.Task, nil)
		if err != nil {
			a.emit(streamfabric.EventError, round, job.critic.Name(), err.Error())
			return
		}
		severity := crit.Severity
		if a.cfg.Calibrator != nil {
			if calibrated, err := a.cfg.Calibrator.Calibrate(ctx, a.cfg.Task, crit.Issues, crit.Severity); err == nil {
				severity = calibrated
			} else {
				a.emit(streamfabric.EventLogMessage, round, job.critic.Name(), "severity calibration skipped: "+err.Error())
			}
		}
		record := CritiqueRecord{
			Agent:         job.critic.Name(),
			TargetAgent:   job.target,
			TargetContent: job.content,
			Issues:        crit.Issues,
			Suggestions:   crit.Suggestions,
			Severity:      severity,
			Reasoning:     crit.Reasoning,
		}
		a.mu.Lock()
		a.critiques = append(a.critiques, record)
		a.mu.Unlock()
		a.emit(streamfabric.EventCritique, round, job.critic.Name(), record)
	})
}

// runRevise lets each proposer fold this round's critiques into a revised
// proposal before voting (spec §4.8 step 3).
func (a *Arena) runRevise(ctx context.Context, round int) {
	a.setStatus(StatusRevise)
	critiquesByTarget := make(map[string][]CritiqueRecord)
	a.mu.Lock()
	for _, c := range a.critiques {
		critiquesByTarget[c.TargetAgent] = append(critiquesByTarget[c.TargetAgent], c)
	}
	a.mu.Unlock()

	var live []*agentcore.Agent
	for _, agent := range a.cfg.Proposers {
		if len(critiquesByTarget[agent.Name()]) == 0 {
			continue
		}
		if !a.cfg.Breaker.CanProceed(agent.Name()) {
			continue
		}
		live = append(live, agent)
	}

	fanOut(live, func(agent *agentcore.Agent) {
		prior, _ := a.proposalAt(agent.Name())
		prompt := fmt.Sprintf("Task: %s\n\nYour proposal:\n%s\n\nRevise it in light of this feedback:\n", a.cfg.Task, prior)
		for _, c := range critiquesByTarget[agent.Name()] {
			for _, issue := range c.Issues {
				prompt += fmt.Sprintf("- %s\n", issue)
			}
		}
		revised, err := agent.Generate(ctx, prompt, nil)
		if err != nil {
			a.emit(streamfabric.EventError, round, agent.Name(), err.Error())
			return
		}
		a.mu.Lock()
		a.proposals[agent.Name()] = revised
		a.messages = append(a.messages, Message{Round: round, Role: "revision", Agent: agent.Name(), Content: revised, Timestamp: a.now()})
		a.mu.Unlock()
		a.emit(streamfabric.EventAgentMessage, round, agent.Name(), revised)
	})
}

func (a *Arena) runVote(ctx context.Context, round int) []Vote {
	a.setStatus(StatusVote)
	voters := append(append([]*agentcore.Agent{}, a.cfg.Proposers...), a.cfg.Critics...)
	snapshot := a.proposalsSnapshot()
	participants := make([]string, 0, len(snapshot))
	for name := range snapshot {
		participants = append(participants, name)
	}

	votes := CollectVotes(ctx, voters, snapshot, a.cfg.Task, participants)
	if a.cfg.Protocol.VoteGrouping && a.cfg.Backend != nil {
		groups := GroupSimilarVotes(ctx, votes, a.cfg.Backend, a.cfg.Protocol.VoteGroupingThreshold)
		votes = ApplyVoteGrouping(votes, groups)
	}

	a.mu.Lock()
	a.votes = append(a.votes, votes...)
	a.mu.Unlock()
	for _, v := range votes {
		a.emit(streamfabric.EventVote, round, v.Agent, v)
	}
	return votes
}

// runJudge asks the configured judge agent to pick a winner when the
// round loop exhausted its budget without reaching consensus (spec §4.8
// step 5, the optional JUDGE stage).
func (a *Arena) runJudge(ctx context.Context) string {
	if a.cfg.Judge == nil {
		return ""
	}
	if !a.cfg.Breaker.CanProceed(a.cfg.Judge.Name()) {
		return ""
	}
	a.setStatus(StatusJudge)
	snapshot := a.proposalsSnapshot()
	vote, err := a.cfg.Judge.Vote(ctx, snapshot, a.cfg.Task)
	if err != nil {
		a.emit(streamfabric.EventError, a.round, a.cfg.Judge.Name(), err.Error())
		return ""
	}
	a.emit(streamfabric.EventVote, a.round, a.cfg.Judge.Name(), vote)
	return vote.Choice
}

// drainAudience pulls any buffered audience messages for this debate and
// publishes an aggregate metrics event (spec §4.7/§4.8).
func (a *Arena) drainAudience(round int) {
	if a.cfg.Inbox == nil {
		return
	}
	summary := a.cfg.Inbox.GetSummary(a.cfg.DebateID)
	a.emit(streamfabric.EventAudienceMetrics, round, "", summary)
}

func (a *Arena) history() []agentcore.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []agentcore.Message
	for _, m := range a.messages {
		out = append(out, agentcore.Message{Role: m.Role, Content: fmt.Sprintf("[%s] %s", m.Agent, m.Content)})
	}
	return out
}

func (a *Arena) proposalAt(agentName string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.proposals[agentName]
	return v, ok
}

func (a *Arena) proposalsSnapshot() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.proposals))
	for k, v := range a.proposals {
		out[k] = v
	}
	return out
}

func (a *Arena) messagesSnapshot() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Message, len(a.messages))
	copy(out, a.messages)
	return out
}

func (a *Arena) critiquesSnapshot() []CritiqueRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CritiqueRecord, len(a.critiques))
	copy(out, a.critiques)
	return out
}

func (a *Arena) votesSnapshot() []Vote {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Vote, len(a.votes))
	copy(out, a.votes)
	return out
}

func agentNames(agents []*agentcore.Agent) []string {
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.Name()
	}
	return out
}

func contains(xs []string, target string) bool {
	for _, x := range xs {
		if x == target {
			return true
		}
	}
	return false
}
