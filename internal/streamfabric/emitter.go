package streamfabric

import (
	"sync"
)

// MaxQueueSize bounds the emitter's internal FIFO (spec §4.6: "bounded
// FIFO with capacity 10 000").
const MaxQueueSize = 10_000

// DrainBatchSize is the maximum number of events pulled per drain tick
// (spec §4.6: "batches (≤100 per tick)").
const DrainBatchSize = 100

// Subscriber receives events synchronously and inline; panics/errors are
// swallowed by the emitter so one bad subscriber cannot break emission
// for others (spec §4.6: "exceptions swallowed and logged").
type Subscriber func(StreamEvent)

// ErrorLogger is invoked when a subscriber panics; it defaults to a no-op
// if unset so the package never depends on a concrete logger.
type ErrorLogger func(loopID string, recovered any)

// EventEmitter is the thread-safe sync→async bridge from spec §4.6,
// ported from original_source's SyncEventEmitter. Producers call Emit
// synchronously; a background goroutine (or repeated Drain calls) moves
// events out for WebSocket broadcast.
type EventEmitter struct {
	mu            sync.Mutex
	queue         []StreamEvent
	overflowCount int
	loopID        string
	subscribers   []Subscriber
	onPanic       ErrorLogger
}

// NewEventEmitter constructs an emitter whose events default to loopID
// when an emitted event doesn't specify one.
func NewEventEmitter(loopID string) *EventEmitter {
	return &EventEmitter{loopID: loopID}
}

// SetLoopID updates the default loop_id attached to events lacking one.
func (e *EventEmitter) SetLoopID(loopID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loopID = loopID
}

// SetErrorLogger installs a callback invoked when a subscriber panics.
func (e *EventEmitter) SetErrorLogger(logger ErrorLogger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPanic = logger
}

// Subscribe registers fn to be invoked inline, synchronously, for every
// emitted event (best-effort; a panic in fn is recovered and logged).
func (e *EventEmitter) Subscribe(fn Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// Emit enqueues evt (stamping loop_id if absent) and invokes all
// subscribers inline. On overflow the oldest queued event is dropped and
// the overflow counter advances (spec §4.6).
func (e *EventEmitter) Emit(evt StreamEvent) {
	e.mu.Lock()
	if evt.LoopID == "" {
		evt.LoopID = e.loopID
	}
	if len(e.queue) >= MaxQueueSize {
		e.queue = e.queue[1:]
		e.overflowCount++
	}
	e.queue = append(e.queue, evt)
	subs := make([]Subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	onPanic := e.onPanic
	loopID := evt.LoopID
	e.mu.Unlock()

	for _, sub := range subs {
		callSubscriber(sub, evt, onPanic, loopID)
	}
}

func callSubscriber(sub Subscriber, evt StreamEvent, onPanic ErrorLogger, loopID string) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(loopID, r)
		}
	}()
	sub(evt)
}

// Drain pulls up to DrainBatchSize events from the front of the queue in
// FIFO order, non-blocking.
func (e *EventEmitter) Drain() []StreamEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.queue)
	if n > DrainBatchSize {
		n = DrainBatchSize
	}
	out := make([]StreamEvent, n)
	copy(out, e.queue[:n])
	e.queue = e.queue[n:]
	return out
}

// OverflowCount reports how many events have been dropped due to the
// queue being full at emit time.
func (e *EventEmitter) OverflowCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overflowCount
}

// QueueLen reports the current number of queued, undrained events.
func (e *EventEmitter) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
