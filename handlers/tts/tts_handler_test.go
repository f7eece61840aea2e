package tts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicekit/core"
	"practicekit/events/llm"
	"practicekit/events/tts"
	"practicekit/events/vad"
)

type recordingService struct {
	mu    sync.Mutex
	texts []string
	block bool
}

func (s *recordingService) Initialize(ctx context.Context) error { return nil }
func (s *recordingService) Cleanup() error                       { return nil }
func (s *recordingService) Reset() error                         { return nil }

func (s *recordingService) Synthesize(ctx context.Context, text string, out chan<- core.AudioChunk) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	data := []byte{0, 0, 0, 0}
	select {
	case out <- core.AudioChunk{Data: &data, SampleRate: 24000, Channels: 1, Format: core.PCM}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *recordingService) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func startTTSHandler(t *testing.T, service TTSService) (chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	h := NewTTSHandler(service, nil, DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	in := make(chan *core.EventPacket, 16)
	out := make(chan *core.EventPacket, 64)
	require.NoError(t, h.Initialize(in, out, make(chan *core.EventPacket, 4), ctx))
	require.NoError(t, h.Start())
	return in, out
}

func send(in chan<- *core.EventPacket, event core.IEvent) {
	in <- core.NewEventPacket(event, core.EventRelayDestinationNextService, "test")
}

// waitFor reads events until one of type T arrives.
func waitFor[T core.IEvent](t *testing.T, out <-chan *core.EventPacket) T {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case packet := <-out:
			if e, ok := packet.Event.(T); ok {
				return e
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestSplitSpeakable(t *testing.T) {
	breaks := DefaultConfig().BreakWords

	ready, rest := splitSpeakable("That sounds lovely. Where did you", breaks, 10)
	assert.Equal(t, "That sounds lovely.", ready)
	assert.Equal(t, " Where did you", rest)

	ready, rest = splitSpeakable("Hi. How", breaks, 10)
	assert.Empty(t, ready)
	assert.Equal(t, "Hi. How", rest)

	ready, _ = splitSpeakable("It costs 3.50 dollars", breaks, 1)
	assert.Empty(t, ready, "decimal points are not sentence ends")
}

func TestNormalizeTextForTTS(t *testing.T) {
	assert.Equal(t, "Great job! Keep going.", normalizeTextForTTS("**Great** job! 🎉\n\n  Keep `going`."))
}

func TestTTSHandlerSpeaksCompletedReply(t *testing.T) {
	service := &recordingService{}
	in, out := startTTSHandler(t, service)

	send(in, &llm.LLMResponseStartedEvent{RequestID: "r1"})
	send(in, &llm.LLMResponseChunkEvent{RequestID: "r1", Chunk: "That sounds like a great trip. "})
	send(in, &llm.LLMResponseChunkEvent{RequestID: "r1", Chunk: "Where did you go"})
	send(in, &llm.LLMResponseCompletedEvent{RequestID: "r1", FullText: "That sounds like a great trip. Where did you go"})

	waitFor[*tts.TTSSpeakingStartedEvent](t, out)
	waitFor[*tts.TTSOutputEvent](t, out)
	waitFor[*tts.TTSSpeakingEndedEvent](t, out)

	assert.Equal(t, []string{"That sounds like a great trip.", "Where did you go"}, service.spoken())
}

func TestTTSHandlerDropsFailedReply(t *testing.T) {
	service := &recordingService{}
	in, out := startTTSHandler(t, service)

	send(in, &llm.LLMResponseStartedEvent{RequestID: "r1"})
	send(in, &llm.LLMResponseChunkEvent{RequestID: "r1", Chunk: "Half a sentence"})
	send(in, &llm.LLMResponseFailedEvent{RequestID: "r1", Error: "timeout"})

	waitFor[*llm.LLMResponseFailedEvent](t, out)
	assert.Empty(t, service.spoken())
}

func TestTTSHandlerInterruptedBySpeech(t *testing.T) {
	service := &recordingService{block: true}
	in, out := startTTSHandler(t, service)

	send(in, &llm.LLMResponseStartedEvent{RequestID: "r1"})
	send(in, &llm.LLMResponseChunkEvent{RequestID: "r1", Chunk: "A long answer"})
	send(in, &llm.LLMResponseCompletedEvent{RequestID: "r1", FullText: "A long answer"})

	waitFor[*tts.TTSOutputEvent](t, out)
	send(in, &vad.VadUserSpeechStartedEvent{})
	waitFor[*tts.TTSSpeakingEndedEvent](t, out)
}
