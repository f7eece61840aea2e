package stt

import (
	"strings"
	"time"

	"practicekit/core"
	"practicekit/events/stt"
	"practicekit/events/transport"
	"practicekit/events/vad"
	"practicekit/utils/audio"
)

type ISTTService interface {
	core.IService
	StartTranscriptionSession(outChan chan<- string, interimOutputChan chan<- string, fatalServiceErrorChan chan<- error) error
	SendTranscriptionAudio(audioData []byte) error
}

// STTHandler streams user audio to the transcription service and assembles
// final transcript segments into complete user turns. A turn is committed
// once the user has been silent for the endpointing delay.
type STTHandler struct {
	*core.BaseHandler
	config STTConfig

	messageOutChan chan string
	interimOutChan chan string
	serviceErrChan chan error
	flushChan      chan uint64

	// Owned by the event loop goroutine.
	pending      []string
	userSpeaking bool
	turnStart    time.Time
	flushTimer   *time.Timer
	flushGen     uint64
}

func NewSTTHandler(service ISTTService, backupServices []ISTTService, config STTConfig, logger *core.Logger) *STTHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	return &STTHandler{
		BaseHandler:    core.NewBaseHandler("STTHandler", service, typedServices, logger),
		config:         config,
		messageOutChan: make(chan string, 16),
		interimOutChan: make(chan string, 16),
		serviceErrChan: make(chan error, 1),
		flushChan:      make(chan uint64, 1),
	}
}

func (h *STTHandler) service() ISTTService {
	return h.CurrentService().(ISTTService)
}

func (h *STTHandler) Start() error {
	if err := h.service().StartTranscriptionSession(h.messageOutChan, h.interimOutChan, h.serviceErrChan); err != nil {
		return err
	}
	go h.eventLoop()
	return nil
}

func (h *STTHandler) eventLoop() {
	defer h.stopFlushTimer()
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet, ok := <-h.InputChan:
			if !ok {
				return
			}
			if err := h.HandleEvent(packet); err != nil {
				h.Logger.Error("failed to handle event", "event", packet.Event.GetId(), "error", err)
			}
		case text := <-h.messageOutChan:
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			h.pending = append(h.pending, text)
			if !h.userSpeaking {
				h.armFlush()
			}
		case text := <-h.interimOutChan:
			h.Relay(&stt.STTInterimOutputEvent{Text: text})
		case err := <-h.serviceErrChan:
			h.HandleError(err)
			if restartErr := h.service().StartTranscriptionSession(h.messageOutChan, h.interimOutChan, h.serviceErrChan); restartErr != nil {
				h.Logger.Error("failed to restart transcription session", "error", restartErr)
			}
		case gen := <-h.flushChan:
			if gen == h.flushGen && !h.userSpeaking {
				h.flush()
			}
		}
	}
}

func (h *STTHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *transport.TransportAudioInputEvent:
		processedChunk, err := audio.ConvertAudioChunk(event.AudioChunk, h.config.RequiredAudioFormat, h.config.RequiredChannels, h.config.RequiredSampleRate)
		if err != nil {
			return err
		}
		if err := h.service().SendTranscriptionAudio(*processedChunk.Data); err != nil {
			h.Logger.Warn("failed to send audio for transcription", "error", err)
		}
		// Input audio stops here; nothing downstream consumes it.
		return nil
	case *vad.VadUserSpeechStartedEvent:
		h.userSpeaking = true
		if h.turnStart.IsZero() {
			h.turnStart = time.Now()
		}
		h.stopFlushTimer()
	case *vad.VadUserSpeechEndedEvent:
		h.userSpeaking = false
		h.armFlush()
	}
	h.SendPacket(eventPacket)
	return nil
}

func (h *STTHandler) armFlush() {
	h.stopFlushTimer()
	h.flushGen++
	gen := h.flushGen
	delay := seconds(h.config.EndpointingDelay)
	if !h.turnStart.IsZero() {
		if remaining := seconds(h.config.MinTurnDuration) - time.Since(h.turnStart); remaining > delay {
			delay = remaining
		}
	}
	h.flushTimer = time.AfterFunc(delay, func() {
		select {
		case h.flushChan <- gen:
		default:
		}
	})
}

func (h *STTHandler) stopFlushTimer() {
	if h.flushTimer != nil {
		h.flushTimer.Stop()
		h.flushTimer = nil
	}
}

func (h *STTHandler) flush() {
	if len(h.pending) == 0 {
		return
	}
	h.turnStart = time.Time{}
	text := strings.Join(h.pending, " ")
	h.pending = nil
	h.Logger.Debug("user turn committed", "text", text)
	h.Relay(&stt.STTFinalOutputEvent{Text: text, Timestamp: time.Now()})
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
