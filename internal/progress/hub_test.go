package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(KindNew))
	hub.Emit(sampleEvent(KindDone))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(KindNew))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWhenFull asserts Emit never blocks callers, even without a consumer.
func TestHubEmitNonBlockingWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(KindNew))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubDropsInvalidEvents ensures malformed events never reach sinks.
func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{MaxBatchEvents: 1}, sink)

	hub.Emit(Event{Kind: KindNew, TS: time.Now()})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
	require.True(t, sink.Closed())
}

// TestHubFlushOnClose ensures Close drains any buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{
		BufferSize:     4,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	hub.Emit(sampleEvent(KindNew))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)

	hub.Emit(sampleEvent(KindDone))
	require.Len(t, sink.Batches(), 1)
}

// TestHubListenerEmitsTaskEvents wires a HubListener to a reporter and checks the emitted snapshots.
func TestHubListenerEmitsTaskEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(HubConfig{MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	r := New()
	r.Register(NewHubListener(hub, fixedClock{at: fixed}))
	worker := r.NewStack()

	task := worker.Start("unit", WithTotal(2))
	task.Advance("parse")
	task.Advance("emit")
	task.Close()
	require.NoError(t, hub.Close(context.Background()))

	batches := sink.Batches()
	require.Len(t, batches, 1)
	events := batches[0]
	require.Len(t, events, 4)
	require.Equal(t, []Kind{KindNew, KindAdvance, KindAdvance, KindDone}, []Kind{
		events[0].Kind, events[1].Kind, events[2].Kind, events[3].Kind,
	})
	adv := events[2]
	require.Equal(t, task.ID(), adv.TaskUUID())
	require.Equal(t, "emit", adv.Step)
	require.Equal(t, "parse", adv.PreviousStep)
	require.Equal(t, int64(1), adv.StepIndex)
	require.Equal(t, int64(2), adv.Total)
	require.Equal(t, 0, adv.Depth)
	require.False(t, adv.Primary)
	require.Equal(t, fixed, adv.TS)
}

// TestEventValidate covers the coarse payload checks.
func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleEvent(KindNew).Validate())
	require.Error(t, Event{}.Validate())

	bad := sampleEvent(KindAdvance)
	bad.StepIndex = -1
	require.Error(t, bad.Validate())

	over := sampleEvent(KindAdvance)
	over.Total = 1
	over.StepIndex = 1
	require.Error(t, over.Validate())

	unknown := sampleEvent(KindNew)
	unknown.Kind = "TASK_PAUSED"
	require.Error(t, unknown.Validate())
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(kind Kind) Event {
	evt := Event{
		TaskID: uuid.New(),
		TS:     time.Now(),
		Kind:   kind,
		Task:   "sample",
		Total:  -1,
	}
	if kind == KindAdvance {
		evt.StepIndex = 0
		evt.Step = "first"
	} else {
		evt.StepIndex = -1
	}
	return evt
}
