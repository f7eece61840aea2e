package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct{ Hops int }

func (e *pingEvent) GetId() string { return "test.ping" }

type bounceEvent struct{}

func (e *bounceEvent) GetId() string { return "test.bounce" }

// countingHandler increments ping hops and turns a bounce into a ping sent to
// the head of the chain.
type countingHandler struct {
	*BaseHandler
	cleaned bool
}

func newCountingHandler(name string) *countingHandler {
	return &countingHandler{BaseHandler: NewBaseHandler(name, nil, nil, nil)}
}

func (h *countingHandler) Start() error {
	go h.RunEventLoop(h.HandleEvent)
	return nil
}

func (h *countingHandler) HandleEvent(packet *EventPacket) error {
	switch e := packet.Event.(type) {
	case *pingEvent:
		e.Hops++
	case *bounceEvent:
		h.Broadcast(&pingEvent{Hops: 100})
		return nil
	}
	h.SendPacket(packet)
	return nil
}

func (h *countingHandler) Cleanup() error {
	h.cleaned = true
	return nil
}

type tailRecorder struct {
	mu     sync.Mutex
	events []IEvent
}

func (r *tailRecorder) observe(packet *EventPacket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, packet.Event)
}

func (r *tailRecorder) snapshot() []IEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]IEvent(nil), r.events...)
}

func TestRunnerRelaysThroughChain(t *testing.T) {
	first, second := newCountingHandler("first"), newCountingHandler("second")
	runner := NewRunner([]IHandler{first, second}, nil)
	recorder := &tailRecorder{}
	runner.Observe(recorder.observe)

	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	require.NoError(t, runner.Inject(&pingEvent{}))

	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, recorder.snapshot()[0].(*pingEvent).Hops)
}

func TestRunnerRoutesTopPacketsToHead(t *testing.T) {
	first, second := newCountingHandler("first"), newCountingHandler("second")
	runner := NewRunner([]IHandler{first, second}, nil)
	recorder := &tailRecorder{}
	runner.Observe(recorder.observe)

	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	require.NoError(t, runner.Inject(&bounceEvent{}))

	// The first handler consumes the bounce and broadcasts a ping, which
	// re-enters at the head and passes both handlers.
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 102, recorder.snapshot()[0].(*pingEvent).Hops)
}

func TestRunnerStopCleansUpAndFinishes(t *testing.T) {
	handler := newCountingHandler("only")
	runner := NewRunner([]IHandler{handler}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, runner.Start(ctx))
	cancel()

	select {
	case <-runner.Finished:
	case <-time.After(time.Second):
		t.Fatal("runner did not finish after context cancellation")
	}
	assert.True(t, handler.cleaned)
	assert.Error(t, runner.Inject(&pingEvent{}))
}

func TestRunnerInjectBeforeStart(t *testing.T) {
	runner := NewRunner([]IHandler{newCountingHandler("only")}, nil)
	assert.ErrorIs(t, runner.Inject(&pingEvent{}), ErrRunnerNotStarted)
}
