package tts

type TTSConfig struct {
	BreakWords        []string `json:"break_words"`         // Single-character punctuation marks after which buffered text may be sent to synthesis.
	MinTextLength     int      `json:"min_text_length"`     // Minimum buffered length before an early flush, so very short fragments are not spoken on their own.
	InterruptOnSpeech bool     `json:"interrupt_on_speech"` // Stop speaking when the user starts talking.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		BreakWords:        []string{".", "!", "?", ";", ":"},
		MinTextLength:     20,
		InterruptOnSpeech: true,
	}
}
