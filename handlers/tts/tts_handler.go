package tts

import (
	"context"
	"strings"
	"sync"

	"practicekit/core"
	"practicekit/events/llm"
	"practicekit/events/tts"
	"practicekit/events/vad"
)

type TTSService interface {
	core.IService
	// Synthesize streams audio for text into outChan and returns once all
	// audio has been delivered or ctx is cancelled.
	Synthesize(ctx context.Context, text string, outChan chan<- core.AudioChunk) error
}

type segment struct {
	epoch uint64
	text  string
	last  bool // final segment of a reply
}

// TTSHandler buffers streamed reply text, cuts it at sentence boundaries and
// speaks the pieces in order. User speech interrupts playback.
type TTSHandler struct {
	*core.BaseHandler
	config TTSConfig

	segments chan segment

	// Owned by the event loop goroutine.
	requestID string
	buffer    strings.Builder

	mu          sync.Mutex
	epoch       uint64
	cancelSynth context.CancelFunc
}

func NewTTSHandler(service TTSService, backupServices []TTSService, config TTSConfig, logger *core.Logger) *TTSHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	if len(config.BreakWords) == 0 {
		config.BreakWords = DefaultConfig().BreakWords
	}
	return &TTSHandler{
		BaseHandler: core.NewBaseHandler("TTSHandler", service, typedServices, logger),
		config:      config,
		segments:    make(chan segment, 64),
	}
}

func (h *TTSHandler) Start() error {
	go h.speakLoop()
	go h.RunEventLoop(h.HandleEvent)
	return nil
}

func (h *TTSHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *llm.LLMResponseStartedEvent:
		h.requestID = event.RequestID
		h.buffer.Reset()
	case *llm.LLMResponseChunkEvent:
		if event.RequestID != h.requestID {
			return nil
		}
		h.buffer.WriteString(event.Chunk)
		ready, rest := splitSpeakable(h.buffer.String(), h.config.BreakWords, h.config.MinTextLength)
		if ready != "" {
			h.buffer.Reset()
			h.buffer.WriteString(rest)
			h.enqueue(ready, false)
		}
		// Chunks stop here; the completed event carries the full text.
		return nil
	case *llm.LLMResponseCompletedEvent:
		if event.RequestID == h.requestID {
			h.enqueue(h.buffer.String(), true)
			h.buffer.Reset()
			h.requestID = ""
		}
	case *llm.LLMResponseFailedEvent:
		if event.RequestID == h.requestID {
			h.buffer.Reset()
			h.requestID = ""
		}
	case *vad.VadUserSpeechStartedEvent:
		if h.config.InterruptOnSpeech {
			h.buffer.Reset()
			h.requestID = ""
			h.interrupt()
		}
	}
	h.SendPacket(eventPacket)
	return nil
}

func (h *TTSHandler) currentEpoch() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epoch
}

func (h *TTSHandler) enqueue(text string, last bool) {
	seg := segment{epoch: h.currentEpoch(), text: normalizeTextForTTS(text), last: last}
	if seg.text == "" && !last {
		return
	}
	select {
	case h.segments <- seg:
	case <-h.Ctx.Done():
	}
}

// interrupt drops queued segments and cancels the one being spoken.
func (h *TTSHandler) interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.epoch++
	if h.cancelSynth != nil {
		h.cancelSynth()
	}
}

func (h *TTSHandler) speakLoop() {
	speaking := false
	for {
		select {
		case <-h.Ctx.Done():
			return
		case seg := <-h.segments:
			h.mu.Lock()
			stale := seg.epoch != h.epoch
			var ctx context.Context
			if !stale {
				ctx, h.cancelSynth = context.WithCancel(h.Ctx)
			}
			h.mu.Unlock()

			if stale {
				if speaking {
					speaking = false
					h.Relay(&tts.TTSSpeakingEndedEvent{})
				}
				continue
			}

			if seg.text != "" {
				if !speaking {
					speaking = true
					h.Relay(&tts.TTSSpeakingStartedEvent{})
				}
				if err := h.synthesize(ctx, seg.text); err != nil && ctx.Err() == nil {
					h.Logger.Error("speech synthesis failed", "error", err)
					h.HandleError(err)
				}
			}

			h.mu.Lock()
			interrupted := seg.epoch != h.epoch
			h.cancelSynth = nil
			h.mu.Unlock()

			if speaking && (seg.last || interrupted) {
				speaking = false
				h.Relay(&tts.TTSSpeakingEndedEvent{})
			}
		}
	}
}

func (h *TTSHandler) synthesize(ctx context.Context, text string) error {
	service := h.CurrentService().(TTSService)
	out := make(chan core.AudioChunk, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Synthesize(ctx, text, out)
	}()

	for {
		select {
		case chunk := <-out:
			if ctx.Err() == nil {
				h.Relay(&tts.TTSOutputEvent{AudioChunk: chunk})
			}
		case err := <-errCh:
			for {
				select {
				case chunk := <-out:
					if ctx.Err() == nil {
						h.Relay(&tts.TTSOutputEvent{AudioChunk: chunk})
					}
				default:
					return err
				}
			}
		}
	}
}
