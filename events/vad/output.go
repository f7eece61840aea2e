package vad

import "time"

type VadUserSpeechStartedEvent struct {
}

func (e *VadUserSpeechStartedEvent) GetId() string {
	return "vad.user_speech.started"
}

type VadUserSpeechEndedEvent struct {
	SpeechDuration time.Duration
}

func (e *VadUserSpeechEndedEvent) GetId() string {
	return "vad.user_speech.ended"
}
