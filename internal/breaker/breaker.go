// Package breaker implements the per-entity circuit breaker described in
// spec §4.2. A single type serves both the single-entity case (one
// implicit entity keyed by the empty string) and the multi-entity case
// (one counter set per agent name), mirroring the teacher's preference
// for a single mutex-guarded struct with explicit accessor methods
// (conversation.DebateSession's debateMutex pattern).
package breaker

import (
	"sync"
	"time"
)

// State is a circuit's lifecycle stage for one entity.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config holds the breaker's tunable thresholds (spec §4.2 defaults).
type Config struct {
	FailureThreshold         int
	CooldownSeconds          float64
	HalfOpenSuccessThreshold int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         3,
		CooldownSeconds:          60,
		HalfOpenSuccessThreshold: 2,
	}
}

type entityState struct {
	state        State
	failures     int
	halfOpenSucc int
	openAt       time.Time
}

// Breaker tracks circuit state per entity name. The zero value is not
// usable; construct with New. All methods are safe for concurrent use.
type Breaker struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	entries map[string]*entityState
}

// New constructs a Breaker with cfg. entities default to CLOSED on first
// reference, so nothing needs to be pre-registered.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entityState),
	}
}

func (b *Breaker) entry(entity string) *entityState {
	e, ok := b.entries[entity]
	if !ok {
		e = &entityState{state: Closed}
		b.entries[entity] = e
	}
	return e
}

// CanProceed reports whether calls against entity are currently allowed.
// Reading is side-effect-free for CLOSED/HALF_OPEN, but may transition an
// OPEN circuit to HALF_OPEN if the cooldown window has elapsed.
func (b *Breaker) CanProceed(entity string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(entity)
	if e.state == Open {
		if b.now().Sub(e.openAt).Seconds() >= b.cfg.CooldownSeconds {
			e.state = HalfOpen
			e.halfOpenSucc = 0
		}
	}
	return e.state == Closed || e.state == HalfOpen
}

// RecordSuccess accounts for a successful call against entity.
func (b *Breaker) RecordSuccess(entity string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(entity)
	switch e.state {
	case HalfOpen:
		e.halfOpenSucc++
		if e.halfOpenSucc >= b.cfg.HalfOpenSuccessThreshold {
			e.state = Closed
			e.failures = 0
			e.halfOpenSucc = 0
		}
	case Closed:
		e.failures = 0
	}
}

// RecordFailure accounts for a failed call against entity and reports
// whether this failure just tripped the circuit open.
func (b *Breaker) RecordFailure(entity string) (justOpened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(entity)
	if e.state == HalfOpen {
		e.state = Open
		e.openAt = b.now()
		e.failures = b.cfg.FailureThreshold
		e.halfOpenSucc = 0
		return true
	}
	e.failures++
	if e.failures >= b.cfg.FailureThreshold && e.state != Open {
		e.state = Open
		e.openAt = b.now()
		return true
	}
	return false
}

// State returns the current state for entity without mutating it.
func (b *Breaker) State(entity string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entry(entity).state
}

// FilterAvailable returns the subset of entities currently allowed to
// proceed, preserving input order.
func (b *Breaker) FilterAvailable(entities []string) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		if b.CanProceed(e) {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot is the serializable form of breaker state for durable storage
// across process restarts (spec §4.2 to_dict/from_dict).
type Snapshot struct {
	Failures     map[string]int     `json:"failures"`
	OpenAgeSecs  map[string]float64 `json:"open_circuits"`
}

// ToDict captures the breaker's current state for persistence.
func (b *Breaker) ToDict() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Failures:    make(map[string]int),
		OpenAgeSecs: make(map[string]float64),
	}
	now := b.now()
	for name, e := range b.entries {
		snap.Failures[name] = e.failures
		if e.state == Open {
			snap.OpenAgeSecs[name] = now.Sub(e.openAt).Seconds()
		}
	}
	return snap
}

// FromDict restores breaker state from a snapshot. Any open circuit whose
// recorded age is already ≥ cooldown is dropped back to CLOSED rather
// than resurrected as OPEN (spec §4.2: "on restore, any open_age ≥
// cooldown is dropped").
func (b *Breaker) FromDict(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*entityState)
	now := b.now()
	for name, failures := range snap.Failures {
		e := &entityState{state: Closed, failures: failures}
		b.entries[name] = e
	}
	for name, age := range snap.OpenAgeSecs {
		if age >= b.cfg.CooldownSeconds {
			continue
		}
		e := b.entry(name)
		e.state = Open
		e.openAt = now.Add(-time.Duration(age * float64(time.Second)))
	}
}
