package context

// ContextConfig holds configuration for the conversation context handler.
type ContextConfig struct {
	MaxMessages int `json:"max_messages"` // Most recent user/assistant messages kept in the LLM context. Zero keeps everything.
}

// DefaultContextConfig returns a ContextConfig with sensible defaults
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxMessages: 40,
	}
}
