package stt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicekit/core"
	"practicekit/events/stt"
	"practicekit/events/transport"
	"practicekit/events/vad"
	"practicekit/utils/audio"
)

type fakeSTTService struct {
	mu         sync.Mutex
	finals     chan<- string
	interims   chan<- string
	audioBytes int
}

func (s *fakeSTTService) Initialize(ctx context.Context) error { return nil }
func (s *fakeSTTService) Cleanup() error                       { return nil }
func (s *fakeSTTService) Reset() error                         { return nil }

func (s *fakeSTTService) StartTranscriptionSession(out chan<- string, interim chan<- string, errs chan<- error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals, s.interims = out, interim
	return nil
}

func (s *fakeSTTService) SendTranscriptionAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBytes += len(data)
	return nil
}

func newTestHandler(t *testing.T, minTurn float64) (*fakeSTTService, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	service := &fakeSTTService{}
	cfg := DefaultConfig()
	cfg.EndpointingDelay = 0.02
	cfg.MinTurnDuration = minTurn
	h := NewSTTHandler(service, nil, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	in := make(chan *core.EventPacket, 8)
	out := make(chan *core.EventPacket, 8)
	require.NoError(t, h.Initialize(in, out, make(chan *core.EventPacket, 8), ctx))
	require.NoError(t, h.Start())
	return service, in, out
}

func send(in chan<- *core.EventPacket, event core.IEvent) {
	in <- core.NewEventPacket(event, core.EventRelayDestinationNextService, "test")
}

func nextFinal(t *testing.T, out <-chan *core.EventPacket) *stt.STTFinalOutputEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case packet := <-out:
			if final, ok := packet.Event.(*stt.STTFinalOutputEvent); ok {
				return final
			}
		case <-deadline:
			t.Fatal("no final transcript")
			return nil
		}
	}
}

func TestSTTHandlerJoinsSegmentsIntoOneTurn(t *testing.T) {
	service, in, out := newTestHandler(t, 0)

	send(in, &vad.VadUserSpeechStartedEvent{})
	assert.IsType(t, &vad.VadUserSpeechStartedEvent{}, (<-out).Event)

	service.finals <- "I went hiking"
	service.finals <- "last weekend."

	select {
	case packet := <-out:
		t.Fatalf("turn committed while user was speaking: %s", packet.Event.GetId())
	case <-time.After(60 * time.Millisecond):
	}

	send(in, &vad.VadUserSpeechEndedEvent{SpeechDuration: time.Second})
	final := nextFinal(t, out)
	assert.Equal(t, "I went hiking last weekend.", final.Text)
	assert.False(t, final.Timestamp.IsZero())
}

func TestSTTHandlerCommitsWithoutVAD(t *testing.T) {
	service, _, out := newTestHandler(t, 0)
	service.finals <- "yes"
	assert.Equal(t, "yes", nextFinal(t, out).Text)
}

func TestSTTHandlerConvertsAudio(t *testing.T) {
	service, in, out := newTestHandler(t, 0)

	pcm := audio.SamplesToBytes(make([]int16, 480))
	send(in, &transport.TransportAudioInputEvent{AudioChunk: core.AudioChunk{Data: &pcm, SampleRate: 48000, Channels: 1}})
	service.interims <- "hel"

	packet := <-out
	assert.IsType(t, &stt.STTInterimOutputEvent{}, packet.Event)
	assert.Eventually(t, func() bool {
		service.mu.Lock()
		defer service.mu.Unlock()
		return service.audioBytes == 320
	}, time.Second, 5*time.Millisecond)
}

func TestSTTHandlerHoldsShortTurns(t *testing.T) {
	service, in, out := newTestHandler(t, 0.3)

	start := time.Now()
	send(in, &vad.VadUserSpeechStartedEvent{})
	<-out
	service.finals <- "yes"
	send(in, &vad.VadUserSpeechEndedEvent{SpeechDuration: 100 * time.Millisecond})

	final := nextFinal(t, out)
	assert.Equal(t, "yes", final.Text)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}
