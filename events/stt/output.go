package stt

import "time"

type STTInterimOutputEvent struct {
	Text string
}

func (e *STTInterimOutputEvent) GetId() string {
	return "stt.interim_output"
}

// STTFinalOutputEvent carries one completed user turn.
type STTFinalOutputEvent struct {
	Text      string
	Timestamp time.Time // When the turn was committed.
}

func (e *STTFinalOutputEvent) GetId() string {
	return "stt.final_output"
}
