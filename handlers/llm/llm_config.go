package llm

type LLMHandlerConfig struct {
	CompletionTimeout float64 `json:"completion_timeout"`  // Upper bound, in seconds, for one completion. Zero disables it.
	InterruptOnSpeech bool    `json:"interrupt_on_speech"` // Cancel the running completion when the user starts talking.
}

// DefaultConfig returns a LLMHandlerConfig with sensible defaults
func DefaultConfig() LLMHandlerConfig {
	return LLMHandlerConfig{
		CompletionTimeout: 20,
		InterruptOnSpeech: true,
	}
}
