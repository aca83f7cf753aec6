package streamfabric

import "sync"

// DebateState is the cached, incrementally-updated view of one debate
// that a newly-connecting client is sent as a `sync` frame, ported from
// original_source's DebateStreamServer._update_debate_state /
// debate_states cache.
type DebateState struct {
	LoopID    string
	Status    string
	Round     int
	Messages  []StreamEvent
	Consensus any
}

const maxCachedMessages = 1000

// StateCache subscribes to an EventEmitter and maintains a per-loop
// snapshot suitable for replay to clients that connect mid-debate.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*DebateState
}

// NewStateCache constructs an empty cache. Call Attach to wire it to an
// emitter.
func NewStateCache() *StateCache {
	return &StateCache{states: make(map[string]*DebateState)}
}

// Attach subscribes the cache to emitter so it updates on every event.
func (c *StateCache) Attach(emitter *EventEmitter) {
	emitter.Subscribe(c.observe)
}

func (c *StateCache) observe(evt StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[evt.LoopID]
	if !ok {
		state = &DebateState{LoopID: evt.LoopID}
		c.states[evt.LoopID] = state
	}

	switch evt.Kind {
	case EventDebateStart:
		state.Status = "running"
		state.Messages = nil
	case EventAgentMessage, EventCritique, EventVote:
		state.Round = evt.Round
		state.Messages = append(state.Messages, evt)
		if len(state.Messages) > maxCachedMessages {
			state.Messages = state.Messages[len(state.Messages)-maxCachedMessages:]
		}
	case EventConsensus:
		state.Consensus = evt.Data
	case EventDebateEnd:
		state.Status = "ended"
	case EventLoopUnregister:
		delete(c.states, evt.LoopID)
	case EventCycleStart, EventPhaseStart:
		state.Round = evt.Round
	}
}

// Get returns a copy of the cached state for loopID, if present.
func (c *StateCache) Get(loopID string) (DebateState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[loopID]
	if !ok {
		return DebateState{}, false
	}
	return *state, true
}

// All returns a snapshot of every cached debate state.
func (c *StateCache) All() []DebateState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]DebateState, 0, len(c.states))
	for _, s := range c.states {
		out = append(out, *s)
	}
	return out
}
