package vad

import "time"

type VADConfig struct {
	MinConfidence      float32 `json:"min_confidence"`       // Minimum model confidence for a frame to count as speech. Values range from 0.0 to 1.0.
	MinSpeechDuration  float64 `json:"min_speech_duration"`  // Seconds of continuous speech before the user is considered to be talking.
	MinSilenceDuration float64 `json:"min_silence_duration"` // Seconds of silence before the user is considered to have stopped.
}

// DefaultConfig returns a VADConfig with sensible defaults
func DefaultConfig() VADConfig {
	return VADConfig{
		MinConfidence:      0.5,
		MinSpeechDuration:  0.5,
		MinSilenceDuration: 0.8,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
