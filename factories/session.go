package factories

import (
	"fmt"

	"github.com/bytedance/sonic"

	"practicekit/core"
	contexthandler "practicekit/handlers/context"
	llmhandler "practicekit/handlers/llm"
	stthandler "practicekit/handlers/stt"
	transporthandler "practicekit/handlers/transport"
	ttshandler "practicekit/handlers/tts"
	vadhandler "practicekit/handlers/vad"
	deepgramstt "practicekit/services/deepgram/stt"
	deepgramtts "practicekit/services/deepgram/tts"
	openaillm "practicekit/services/openai/llm"
	silerovad "practicekit/vad/silero"
)

// SessionSTTConfig bundles STT handler config with primary and optional fallback service configs.
type SessionSTTConfig struct {
	HandlerConfig          stthandler.STTConfig `json:"handler"`
	ServiceConfig          STTFactoryConfig     `json:"service"`
	FallbackServiceConfigs []STTFactoryConfig   `json:"fallbacks,omitempty"`
}

// BuildHandler constructs an STTHandler with primary and fallback services wired up.
func (c SessionSTTConfig) BuildHandler(logger *core.Logger) (*stthandler.STTHandler, error) {
	primary, err := BuildSTTService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("stt primary service: %w", err)
	}
	fallbacks := make([]stthandler.ISTTService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildSTTService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("stt fallback[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, fb)
	}
	return stthandler.NewSTTHandler(primary, fallbacks, c.HandlerConfig, logger), nil
}

// SessionLLMConfig bundles LLM handler config with primary and optional fallback service configs.
type SessionLLMConfig struct {
	HandlerConfig          llmhandler.LLMHandlerConfig `json:"handler"`
	ServiceConfig          LLMFactoryConfig            `json:"service"`
	FallbackServiceConfigs []LLMFactoryConfig          `json:"fallbacks,omitempty"`
}

func (c SessionLLMConfig) BuildHandler(logger *core.Logger) (*llmhandler.LLMHandler, error) {
	primary, err := BuildLLMService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("llm primary service: %w", err)
	}
	fallbacks := make([]llmhandler.LLMService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildLLMService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("llm fallback[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, fb)
	}
	return llmhandler.NewLLMHandler(primary, fallbacks, c.HandlerConfig, logger), nil
}

// SessionTTSConfig bundles TTS handler config with primary and optional fallback service configs.
type SessionTTSConfig struct {
	HandlerConfig          ttshandler.TTSConfig `json:"handler"`
	ServiceConfig          TTSFactoryConfig     `json:"service"`
	FallbackServiceConfigs []TTSFactoryConfig   `json:"fallbacks,omitempty"`
}

func (c SessionTTSConfig) BuildHandler(logger *core.Logger) (*ttshandler.TTSHandler, error) {
	primary, err := BuildTTSService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("tts primary service: %w", err)
	}
	fallbacks := make([]ttshandler.TTSService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildTTSService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("tts fallback[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, fb)
	}
	return ttshandler.NewTTSHandler(primary, fallbacks, c.HandlerConfig, logger), nil
}

// SessionVADConfig pairs the turn detection thresholds with the Silero model location.
type SessionVADConfig struct {
	HandlerConfig vadhandler.VADConfig `json:"handler"`
	ServiceConfig silerovad.Config     `json:"silero"`
}

// SessionConfig describes every stage of the voice pipeline of one session.
type SessionConfig struct {
	STT       SessionSTTConfig                 `json:"stt"`
	LLM       SessionLLMConfig                 `json:"llm"`
	TTS       SessionTTSConfig                 `json:"tts"`
	VAD       SessionVADConfig                 `json:"vad"`
	Context   contexthandler.ContextConfig     `json:"context"`
	Transport transporthandler.TransportConfig `json:"transport"`
}

// DefaultSessionConfig selects Deepgram for speech and OpenAI for replies.
func DefaultSessionConfig() SessionConfig {
	ttsConfig := deepgramtts.DefaultConfig()
	llmConfig := openaillm.DefaultConfig()
	return SessionConfig{
		STT: SessionSTTConfig{
			HandlerConfig: stthandler.DefaultConfig(),
			ServiceConfig: STTFactoryConfig{DeepgramConfig: deepgramstt.DefaultConfig()},
		},
		LLM: SessionLLMConfig{
			HandlerConfig: llmhandler.DefaultConfig(),
			ServiceConfig: LLMFactoryConfig{OpenAIConfig: &llmConfig},
		},
		TTS: SessionTTSConfig{
			HandlerConfig: ttshandler.DefaultConfig(),
			ServiceConfig: TTSFactoryConfig{DeepgramConfig: &ttsConfig},
		},
		VAD: SessionVADConfig{
			HandlerConfig: vadhandler.DefaultConfig(),
			ServiceConfig: silerovad.DefaultConfig(),
		},
		Context:   contexthandler.DefaultContextConfig(),
		Transport: transporthandler.DefaultConfig(),
	}
}

// SessionConfigFromJSON overlays data on DefaultSessionConfig.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// APIKeys holds credentials for the speech and language services.
type APIKeys struct {
	Deepgram   string
	OpenAI     string
	Groq       string
	Together   string
	Cartesia   string
	ElevenLabs string
}

// InjectAPIKeys fills in credentials that the config left empty.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	injectSTTKeys(&c.STT.ServiceConfig, keys)
	for i := range c.STT.FallbackServiceConfigs {
		injectSTTKeys(&c.STT.FallbackServiceConfigs[i], keys)
	}
	injectLLMKeys(&c.LLM.ServiceConfig, keys)
	for i := range c.LLM.FallbackServiceConfigs {
		injectLLMKeys(&c.LLM.FallbackServiceConfigs[i], keys)
	}
	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}
}

func injectSTTKeys(cfg *STTFactoryConfig, keys APIKeys) {
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		cfg.DeepgramConfig.APIKey = keys.Deepgram
	}
}

func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	set := func(c *openaillm.Config, key string) {
		if c != nil && c.APIKey == "" {
			c.APIKey = key
		}
	}
	set(cfg.OpenAIConfig, keys.OpenAI)
	set(cfg.GroqConfig, keys.Groq)
	set(cfg.TogetherConfig, keys.Together)
}

func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		cfg.DeepgramConfig.APIKey = keys.Deepgram
	}
	if cfg.CartesiaConfig != nil && cfg.CartesiaConfig.APIKey == "" {
		cfg.CartesiaConfig.APIKey = keys.Cartesia
	}
	if cfg.ElevenLabsConfig != nil && cfg.ElevenLabsConfig.APIKey == "" {
		cfg.ElevenLabsConfig.APIKey = keys.ElevenLabs
	}
}

// BuildHandlers returns the handler chain for one session, in order:
// TransportInput, VAD, STT, Context, LLM, TTS, TransportOutput.
func (c SessionConfig) BuildHandlers(room transporthandler.AudioRoom, instructions string, logger *core.Logger) ([]core.IHandler, error) {
	sttHandler, err := c.STT.BuildHandler(logger)
	if err != nil {
		return nil, err
	}
	llmHandler, err := c.LLM.BuildHandler(logger)
	if err != nil {
		return nil, err
	}
	ttsHandler, err := c.TTS.BuildHandler(logger)
	if err != nil {
		return nil, err
	}
	vadService := silerovad.NewSileroVadService(c.VAD.ServiceConfig, logger)

	return []core.IHandler{
		transporthandler.NewTransportInputHandler(room, logger),
		vadhandler.NewVADHandler(vadService, c.VAD.HandlerConfig, logger),
		sttHandler,
		contexthandler.NewContextHandler(instructions, c.Context, logger),
		llmHandler,
		ttsHandler,
		transporthandler.NewTransportOutputHandler(room, c.Transport, logger),
	}, nil
}
