package transport

import (
	"practicekit/core"
	"practicekit/events/transport"
	"practicekit/events/tts"
	"practicekit/events/vad"
	"practicekit/utils/audio"
)

// AudioRoom is the audio side of a connected room.
type AudioRoom interface {
	// AudioInput delivers decoded audio from remote participants.
	AudioInput() <-chan core.AudioChunk
	WriteAudio(chunk core.AudioChunk) error
	// ClearAudio drops audio queued for playback.
	ClearAudio()
}

// AgentStateSetter is implemented by rooms that publish the agent's state to
// participants.
type AgentStateSetter interface {
	SetAgentState(state string) error
}

const (
	AgentStateListening = "listening"
	AgentStateSpeaking  = "speaking"
)

// TransportInputHandler turns room audio into pipeline events. It sits at the
// head of the chain.
type TransportInputHandler struct {
	*core.BaseHandler
	room AudioRoom
}

func NewTransportInputHandler(room AudioRoom, logger *core.Logger) *TransportInputHandler {
	return &TransportInputHandler{
		BaseHandler: core.NewBaseHandler("TransportInputHandler", nil, nil, logger),
		room:        room,
	}
}

func (h *TransportInputHandler) Start() error {
	go h.receiveLoop()
	return nil
}

func (h *TransportInputHandler) receiveLoop() {
	input := h.room.AudioInput()
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
		case chunk, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			h.Relay(&transport.TransportAudioInputEvent{AudioChunk: chunk})
		}
	}
}

func (h *TransportInputHandler) HandleEvent(packet *core.EventPacket) error {
	h.SendPacket(packet)
	return nil
}

// TransportOutputHandler plays synthesized audio into the room. It sits at
// the tail of the chain and forwards every non-audio event.
type TransportOutputHandler struct {
	*core.BaseHandler
	room   AudioRoom
	config TransportConfig
}

func NewTransportOutputHandler(room AudioRoom, config TransportConfig, logger *core.Logger) *TransportOutputHandler {
	return &TransportOutputHandler{
		BaseHandler: core.NewBaseHandler("TransportOutputHandler", nil, nil, logger),
		room:        room,
		config:      config,
	}
}

func (h *TransportOutputHandler) Start() error {
	go h.RunEventLoop(h.HandleEvent)
	return nil
}

func (h *TransportOutputHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *tts.TTSOutputEvent:
		chunk, err := audio.ConvertAudioChunk(event.AudioChunk, core.PCM, h.config.OutChannels, h.config.OutSampleRate)
		if err != nil {
			return err
		}
		if err := h.room.WriteAudio(chunk); err != nil {
			h.Logger.Warn("failed to write audio to room", "error", err)
		}
		return nil
	case *vad.VadUserSpeechStartedEvent:
		if h.config.InterruptOnSpeech {
			h.room.ClearAudio()
		}
	case *tts.TTSSpeakingStartedEvent:
		h.setAgentState(AgentStateSpeaking)
	case *tts.TTSSpeakingEndedEvent:
		h.setAgentState(AgentStateListening)
	case *transport.TransportAudioInputEvent:
		// Raw input audio has no consumers past the tail.
		return nil
	}
	h.SendPacket(packet)
	return nil
}

func (h *TransportOutputHandler) setAgentState(state string) {
	setter, ok := h.room.(AgentStateSetter)
	if !ok {
		return
	}
	if err := setter.SetAgentState(state); err != nil {
		h.Logger.Debug("failed to publish agent state", "state", state, "error", err)
	}
}
