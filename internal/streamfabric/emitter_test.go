package streamfabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDefaultsLoopID(t *testing.T) {
	e := NewEventEmitter("loop-1")
	e.Emit(StreamEvent{Kind: EventDebateStart, Timestamp: time.Now()})
	drained := e.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "loop-1", drained[0].LoopID)
}

func TestEmitPreservesExplicitLoopID(t *testing.T) {
	e := NewEventEmitter("loop-1")
	e.Emit(StreamEvent{Kind: EventDebateStart, LoopID: "loop-2"})
	drained := e.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "loop-2", drained[0].LoopID)
}

func TestDrainIsFIFO(t *testing.T) {
	e := NewEventEmitter("")
	e.Emit(StreamEvent{Kind: EventRoundStart, Round: 1})
	e.Emit(StreamEvent{Kind: EventRoundStart, Round: 2})
	e.Emit(StreamEvent{Kind: EventRoundStart, Round: 3})
	drained := e.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, 1, drained[0].Round)
	assert.Equal(t, 2, drained[1].Round)
	assert.Equal(t, 3, drained[2].Round)
}

func TestDrainCapsAtBatchSize(t *testing.T) {
	e := NewEventEmitter("")
	for i := 0; i < DrainBatchSize+50; i++ {
		e.Emit(StreamEvent{Kind: EventLogMessage})
	}
	first := e.Drain()
	assert.Len(t, first, DrainBatchSize)
	second := e.Drain()
	assert.Len(t, second, 50)
}

func TestOverflowDropsOldest(t *testing.T) {
	e := NewEventEmitter("")
	for i := 0; i < MaxQueueSize+10; i++ {
		e.Emit(StreamEvent{Kind: EventLogMessage, Round: i})
	}
	assert.Equal(t, 10, e.OverflowCount())
	assert.Equal(t, MaxQueueSize, e.QueueLen())
}

func TestSubscriberReceivesEventsInline(t *testing.T) {
	e := NewEventEmitter("loop-1")
	var received []StreamEvent
	e.Subscribe(func(evt StreamEvent) {
		received = append(received, evt)
	})
	e.Emit(StreamEvent{Kind: EventVote})
	require.Len(t, received, 1)
	assert.Equal(t, EventVote, received[0].Kind)
}

func TestSubscriberPanicIsRecovered(t *testing.T) {
	e := NewEventEmitter("loop-1")
	var loggedLoop string
	e.SetErrorLogger(func(loopID string, _ any) {
		loggedLoop = loopID
	})
	e.Subscribe(func(StreamEvent) {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		e.Emit(StreamEvent{Kind: EventVote, LoopID: "loop-1"})
	})
	assert.Equal(t, "loop-1", loggedLoop)
}
