package server

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aragora-project/aragora-go/internal/agentcore"
	"github.com/aragora-project/aragora-go/internal/arena"
	"github.com/aragora-project/aragora-go/internal/breaker"
	"github.com/aragora-project/aragora-go/internal/logging"
	"github.com/aragora-project/aragora-go/internal/rating"
	"github.com/aragora-project/aragora-go/internal/repo"
	"github.com/aragora-project/aragora-go/internal/similarity"
	"github.com/aragora-project/aragora-go/internal/streamfabric"
)

// DebateManager runs Arena debates concurrently, persists their
// artifacts and ELO outcomes, and bridges each debate's event emitter
// into the single hub broadcast to every connected WebSocket client.
// Grounded on internal/server/debate_manager.go's goroutine lifecycle/
// timeout/watchdog skeleton — that skeleton's actual round loop now
// lives in arena.Arena.Run, so this type keeps only the multi-debate
// bookkeeping (loop registry, state cache, client fan-out, persistence
// on completion) the teacher's single always-on conversation never
// needed.
type DebateManager struct {
	agentsMu sync.RWMutex
	agents   map[string]*agentcore.Agent

	breaker    *breaker.Breaker
	backend    similarity.Backend
	calibrator arena.SeverityCalibrator

	registry *streamfabric.LoopRegistry
	cache    *streamfabric.StateCache
	inbox    *streamfabric.Inbox

	archive *repo.ArchiveRepository
	ledger  *rating.Ledger
	memory  *repo.MemoryRepository

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]*sync.Mutex
}

// NewDebateManager wires a manager around already-open repositories and
// the configured agent pool.
func NewDebateManager(agents map[string]*agentcore.Agent, archive *repo.ArchiveRepository, ledger *rating.Ledger, memory *repo.MemoryRepository, backend similarity.Backend) *DebateManager {
	return &DebateManager{
		agents:   agents,
		breaker:  breaker.New(breaker.DefaultConfig()),
		backend:  backend,
		registry: streamfabric.NewLoopRegistry(),
		cache:    streamfabric.NewStateCache(),
		inbox:    streamfabric.NewInbox(),
		archive:  archive,
		ledger:   ledger,
		memory:   memory,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Agent looks up a configured agent by name.
func (m *DebateManager) Agent(name string) (*agentcore.Agent, bool) {
	m.agentsMu.RLock()
	defer m.agentsMu.RUnlock()
	a, ok := m.agents[name]
	return a, ok
}

// AgentNames returns every configured agent's name.
func (m *DebateManager) AgentNames() []string {
	m.agentsMu.RLock()
	defer m.agentsMu.RUnlock()
	names := make([]string, 0, len(m.agents))
	for name := range m.agents {
		names = append(names, name)
	}
	return names
}

// Registry exposes the loop registry backing the `loop_list` sync frame.
func (m *DebateManager) Registry() *streamfabric.LoopRegistry { return m.registry }

// Cache exposes the per-loop state cache backing the `sync` frame.
func (m *DebateManager) Cache() *streamfabric.StateCache { return m.cache }

// Inbox exposes the audience inbox for ingress handlers.
func (m *DebateManager) Inbox() *streamfabric.Inbox { return m.inbox }

// SetCalibrator installs an optional severity cross-check applied to
// every subsequently started debate's CRITIQUE phase.
func (m *DebateManager) SetCalibrator(c arena.SeverityCalibrator) { m.calibrator = c }

// RegisterClient adds ws to the broadcast set.
func (m *DebateManager) RegisterClient(ws *websocket.Conn) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	m.clients[ws] = &sync.Mutex{}
}

// UnregisterClient removes ws from the broadcast set.
func (m *DebateManager) UnregisterClient(ws *websocket.Conn) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	delete(m.clients, ws)
}

// broadcast fans evt out to every registered WebSocket client, each
// under its own write lock (gorilla/websocket forbids concurrent writers
// on one connection).
func (m *DebateManager) broadcast(evt streamfabric.StreamEvent) {
	m.clientsMu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(m.clients))
	for ws, mu := range m.clients {
		targets[ws] = mu
	}
	m.clientsMu.Unlock()

	for ws, mu := range targets {
		mu.Lock()
		if err := ws.WriteJSON(evt); err != nil {
			logging.LogArenaEvent("broadcast_failed", evt.LoopID, evt.Round, map[string]interface{}{"error": err.Error()})
		}
		mu.Unlock()
	}
}

// StartDebateRequest configures a new Arena run.
type StartDebateRequest struct {
	Task      string
	Proposers []string
	Critics   []string
	Judge     string
	Protocol  arena.Protocol
}

func (m *DebateManager) resolveAgents(names []string) ([]*agentcore.Agent, error) {
	agents := make([]*agentcore.Agent, 0, len(names))
	for _, name := range names {
		a, ok := m.Agent(name)
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", name)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// StartDebate launches one Arena run in a background goroutine,
// registering it in the loop registry and bridging its events into the
// broadcast hub; the final artifact and ELO outcome persist on
// completion. It returns the new debate's id immediately.
func (m *DebateManager) StartDebate(req StartDebateRequest) (string, error) {
	proposers, err := m.resolveAgents(req.Proposers)
	if err != nil {
		return "", err
	}
	if len(proposers) == 0 {
		return "", fmt.Errorf("at least one proposer is required")
	}
	critics, err := m.resolveAgents(req.Critics)
	if err != nil {
		return "", err
	}
	var judge *agentcore.Agent
	if req.Judge != "" {
		judge, err = m.agentOrErr(req.Judge)
		if err != nil {
			return "", err
		}
	}

	debateID := uuid.NewString()
	slug := slugify(req.Task)

	emitter := streamfabric.NewEventEmitter(debateID)
	emitter.SetErrorLogger(func(loopID string, recovered any) {
		logging.LogArenaEvent("subscriber_panic", loopID, 0, map[string]interface{}{"panic": fmt.Sprintf("%v", recovered)})
	})
	emitter.Subscribe(m.broadcast)
	m.cache.Attach(emitter)
	m.registry.Register(debateID, slug, req.Task)

	cfg := arena.Config{
		DebateID:  debateID,
		Slug:      slug,
		Task:      req.Task,
		Protocol:  req.Protocol,
		Proposers: proposers,
		Critics:   critics,
		Judge:     judge,
		Breaker:    m.breaker,
		Emitter:    emitter,
		Inbox:      m.inbox,
		Backend:    m.backend,
		Calibrator: m.calibrator,
	}
	ar := arena.New(cfg)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), arena.MaxDebateDuration)
		defer cancel()

		result, err := ar.Run(ctx)
		m.registry.Unregister(debateID)
		if err != nil {
			logging.LogArenaEvent("run_failed", debateID, 0, map[string]interface{}{"error": err.Error()})
			return
		}
		m.persist(result, emitter)
	}()

	return debateID, nil
}

func (m *DebateManager) agentOrErr(name string) (*agentcore.Agent, error) {
	a, ok := m.Agent(name)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", name)
	}
	return a, nil
}

// persist archives the completed debate and, when consensus named a
// winner, records the corresponding ELO match and emits MATCH_RECORDED
// with the per-agent deltas (spec §4.8 "Termination ... emits
// MATCH_RECORDED", §4.10 "Emit MATCH_RECORDED with per-agent Δ").
func (m *DebateManager) persist(result *arena.Result, emitter *streamfabric.EventEmitter) {
	artifact, err := json.Marshal(result)
	if err != nil {
		logging.LogArenaEvent("persist_marshal_failed", result.ID, result.RoundsUsed, map[string]interface{}{"error": err.Error()})
		return
	}

	if m.archive != nil {
		err := m.archive.Save(repo.DebateRecord{
			ID:               result.ID,
			Slug:             result.Slug,
			Task:             result.Task,
			FinalAnswer:      result.FinalAnswer,
			ConsensusReached: result.ConsensusReached,
			RoundsUsed:       result.RoundsUsed,
			StartedAt:        result.StartedAt,
			EndedAt:          result.EndedAt,
			Artifact:         artifact,
		})
		if err != nil {
			logging.LogArenaEvent("archive_save_failed", result.ID, result.RoundsUsed, map[string]interface{}{"error": err.Error()})
		}
	}

	if m.ledger != nil && result.ConsensusReached && result.Winner != "" && len(result.Agents) > 1 {
		match, err := m.ledger.RecordMatch(result.ID, result.Winner, result.Agents, "")
		if err != nil {
			logging.LogArenaEvent("rating_record_failed", result.ID, result.RoundsUsed, map[string]interface{}{"error": err.Error()})
			return
		}
		logging.LogRatingEvent("match_recorded", match.ID, map[string]interface{}{"winner": match.Winner})
		if emitter != nil {
			emitter.Emit(streamfabric.StreamEvent{
				Kind:      streamfabric.EventMatchRecorded,
				Data:      map[string]interface{}{"match_id": match.ID, "winner": match.Winner, "elo_changes": match.EloChanges},
				Timestamp: time.Now(),
				Round:     result.RoundsUsed,
				LoopID:    result.ID,
			})
		}
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe slug from a debate task description.
func slugify(task string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(task), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "debate"
	}
	return fmt.Sprintf("%s-%d", s, time.Now().UnixNano()%100000)
}
