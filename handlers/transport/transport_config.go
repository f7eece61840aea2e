package transport

type TransportConfig struct {
	OutSampleRate     int  `json:"out_sample_rate"`     // Sample rate of the published audio track.
	OutChannels       int  `json:"out_channels"`        // Channel count of the published audio track.
	InterruptOnSpeech bool `json:"interrupt_on_speech"` // Drop queued assistant audio when the user starts talking.
}

// DefaultConfig returns a TransportConfig with sensible defaults
func DefaultConfig() TransportConfig {
	return TransportConfig{
		OutSampleRate:     24000,
		OutChannels:       1,
		InterruptOnSpeech: true,
	}
}
