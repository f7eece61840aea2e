package factories

import (
	"errors"

	"practicekit/core"
	llmhandler "practicekit/handlers/llm"
	openaillm "practicekit/services/openai/llm"
)

// LLMFactoryConfig holds provider-specific configs for LLM service construction.
// Groq and Together take precedence over OpenAI, which is pre-filled by the
// defaults. Every provider speaks the OpenAI protocol and is served by the
// OpenAI service with a different base URL.
type LLMFactoryConfig struct {
	OpenAIConfig   *openaillm.Config `json:"openai,omitempty"`
	GroqConfig     *openaillm.Config `json:"groq,omitempty"`
	TogetherConfig *openaillm.Config `json:"together,omitempty"`
}

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	togetherBaseURL = "https://api.together.xyz/v1"
)

// BuildLLMService constructs an LLMService from the given factory config.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (llmhandler.LLMService, error) {
	switch {
	case config.GroqConfig != nil:
		return buildOpenAICompatible(*config.GroqConfig, groqBaseURL, "llama-3.3-70b-versatile", logger), nil
	case config.TogetherConfig != nil:
		return buildOpenAICompatible(*config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger), nil
	case config.OpenAIConfig != nil:
		return openaillm.NewOpenAILLMService(*config.OpenAIConfig, logger), nil
	}
	return nil, errors.New("LLMFactoryConfig: no provider config specified")
}

func buildOpenAICompatible(cfg openaillm.Config, defaultBaseURL, defaultModel string, logger *core.Logger) *openaillm.OpenAILLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewOpenAILLMService(cfg, logger)
}
