package stt

import "practicekit/core"

type STTConfig struct {
	RequiredSampleRate  int                      `json:"required_sample_rate"` // The sample rate the STT engine expects, in Hz.
	RequiredChannels    int                      `json:"required_channels"`
	RequiredAudioFormat core.AudioEncodingFormat `json:"required_audio_format"`
	// EndpointingDelay is how long, in seconds, to wait after the user stops
	// speaking before the buffered transcript is committed as a turn.
	EndpointingDelay float64 `json:"endpointing_delay"`
	// MinTurnDuration is the shortest time, in seconds, from the start of a
	// user turn to its commit.
	MinTurnDuration float64 `json:"min_turn_duration"`
}

// DefaultConfig returns a STTConfig with sensible defaults
func DefaultConfig() STTConfig {
	return STTConfig{
		RequiredSampleRate:  16000,
		RequiredChannels:    1,
		RequiredAudioFormat: core.PCM,
		EndpointingDelay:    0.5,
		MinTurnDuration:     1.0,
	}
}
