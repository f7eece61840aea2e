package vad

import (
	"practicekit/core"
	"practicekit/events/transport"
	"practicekit/events/vad"
)

type VADService interface {
	core.IService
	ProcessAudio(input core.AudioChunk) (core.VADResult, error)
}

// VADHandler classifies incoming room audio and announces when the user
// starts and stops talking. Audio is forwarded unchanged.
type VADHandler struct {
	*core.BaseHandler
	config   VADConfig
	detector *speechDetector
}

func NewVADHandler(service VADService, config VADConfig, logger *core.Logger) *VADHandler {
	return &VADHandler{
		BaseHandler: core.NewBaseHandler("VADHandler", service, nil, logger),
		config:      config,
		detector:    newSpeechDetector(seconds(config.MinSpeechDuration), seconds(config.MinSilenceDuration)),
	}
}

func (h *VADHandler) Start() error {
	go h.RunEventLoop(h.HandleEvent)
	return nil
}

func (h *VADHandler) HandleEvent(eventPacket *core.EventPacket) error {
	event, ok := eventPacket.Event.(*transport.TransportAudioInputEvent)
	h.SendPacket(eventPacket)
	if !ok {
		return nil
	}

	service := h.CurrentService().(VADService)
	result, err := service.ProcessAudio(event.AudioChunk)
	if err != nil {
		h.HandleError(err)
		return nil
	}
	if !result.Ready {
		return nil
	}

	isSpeech := result.Confidence >= h.config.MinConfidence
	started, ended, speech := h.detector.Update(isSpeech, event.AudioChunk.GetDuration())
	switch {
	case started:
		h.Logger.Debug("user started speaking")
		h.Relay(&vad.VadUserSpeechStartedEvent{})
	case ended:
		h.Logger.Debug("user stopped speaking", "speech_duration", speech.String())
		h.Relay(&vad.VadUserSpeechEndedEvent{SpeechDuration: speech})
	}
	return nil
}

func (h *VADHandler) Reset() error {
	h.detector.Reset()
	return h.BaseHandler.Reset()
}
