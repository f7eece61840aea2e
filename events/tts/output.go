package tts

import "practicekit/core"

type TTSOutputEvent struct {
	AudioChunk core.AudioChunk
}

func (e *TTSOutputEvent) GetId() string {
	return "tts.output"
}

type TTSSpeakingStartedEvent struct{}

func (e *TTSSpeakingStartedEvent) GetId() string {
	return "tts.speaking_started"
}

type TTSSpeakingEndedEvent struct{}

func (e *TTSSpeakingEndedEvent) GetId() string {
	return "tts.speaking_ended"
}
