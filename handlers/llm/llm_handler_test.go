package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicekit/core"
	"practicekit/events/llm"
	"practicekit/events/vad"
)

type scriptedService struct {
	chunks []string
	err    error
	block  bool
	seen   chan core.LLMContext
}

func (s *scriptedService) Initialize(ctx context.Context) error { return nil }
func (s *scriptedService) Cleanup() error                       { return nil }
func (s *scriptedService) Reset() error                         { return nil }

func (s *scriptedService) RunCompletion(ctx context.Context, llmContext core.LLMContext, out chan<- string) error {
	if s.seen != nil {
		s.seen <- llmContext
	}
	for _, chunk := range s.chunks {
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

type pipes struct {
	in, out, top chan *core.EventPacket
}

func startLLMHandler(t *testing.T, service LLMService, backups []LLMService) pipes {
	t.Helper()
	h := NewLLMHandler(service, backups, DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := pipes{
		in:  make(chan *core.EventPacket, 16),
		out: make(chan *core.EventPacket, 16),
		top: make(chan *core.EventPacket, 16),
	}
	require.NoError(t, h.Initialize(p.in, p.out, p.top, ctx))
	require.NoError(t, h.Start())
	return p
}

func receive(t *testing.T, ch <-chan *core.EventPacket) core.IEvent {
	t.Helper()
	select {
	case packet := <-ch:
		return packet.Event
	case <-time.After(time.Second):
		t.Fatal("no event")
		return nil
	}
}

func request(id string) *core.EventPacket {
	return core.NewEventPacket(&llm.LLMGenerateResponseEvent{RequestID: id}, core.EventRelayDestinationNextService, "test")
}

func TestLLMHandlerStreamsAndCompletes(t *testing.T) {
	p := startLLMHandler(t, &scriptedService{chunks: []string{"Hello", " there", "!"}}, nil)

	p.in <- request("r1")

	started, ok := receive(t, p.out).(*llm.LLMResponseStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "r1", started.RequestID)

	var text strings.Builder
	for i := 0; i < 3; i++ {
		chunk, ok := receive(t, p.out).(*llm.LLMResponseChunkEvent)
		require.True(t, ok)
		text.WriteString(chunk.Chunk)
	}
	assert.Equal(t, "Hello there!", text.String())

	completed, ok := receive(t, p.top).(*llm.LLMResponseCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, "r1", completed.RequestID)
	assert.Equal(t, "Hello there!", completed.FullText)
}

func TestLLMHandlerReportsServiceFailure(t *testing.T) {
	p := startLLMHandler(t, &scriptedService{err: errors.New("rate limited")}, nil)

	p.in <- request("r1")

	var failed *llm.LLMResponseFailedEvent
	for failed == nil {
		if e, ok := receive(t, p.top).(*llm.LLMResponseFailedEvent); ok {
			failed = e
		}
	}
	assert.Equal(t, "r1", failed.RequestID)
	assert.Equal(t, "rate limited", failed.Error)
}

func TestLLMHandlerNewRequestSupersedesOld(t *testing.T) {
	p := startLLMHandler(t, &scriptedService{block: true}, nil)

	p.in <- request("old")
	assert.IsType(t, &llm.LLMResponseStartedEvent{}, receive(t, p.out))
	p.in <- request("new")

	failed, ok := receive(t, p.top).(*llm.LLMResponseFailedEvent)
	require.True(t, ok)
	assert.Equal(t, "old", failed.RequestID)
	assert.Equal(t, errSuperseded.Error(), failed.Error)
}

func TestLLMHandlerInterruptedBySpeech(t *testing.T) {
	p := startLLMHandler(t, &scriptedService{block: true}, nil)

	p.in <- request("r1")
	assert.IsType(t, &llm.LLMResponseStartedEvent{}, receive(t, p.out))
	p.in <- core.NewEventPacket(&vad.VadUserSpeechStartedEvent{}, core.EventRelayDestinationNextService, "test")

	assert.IsType(t, &vad.VadUserSpeechStartedEvent{}, receive(t, p.out))
	failed, ok := receive(t, p.top).(*llm.LLMResponseFailedEvent)
	require.True(t, ok)
	assert.Equal(t, errInterrupted.Error(), failed.Error)
}
