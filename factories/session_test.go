package factories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicekit/core"
	cartesiatts "practicekit/services/cartesia/tts"
	elevenlabstts "practicekit/services/elevenlabs/tts"
	openaillm "practicekit/services/openai/llm"
)

type silentRoom struct {
	input chan core.AudioChunk
}

func (r *silentRoom) AudioInput() <-chan core.AudioChunk     { return r.input }
func (r *silentRoom) WriteAudio(chunk core.AudioChunk) error { return nil }
func (r *silentRoom) ClearAudio()                            {}

func TestBuildHandlersOrder(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.InjectAPIKeys(APIKeys{Deepgram: "dg", OpenAI: "sk"})

	handlers, err := cfg.BuildHandlers(&silentRoom{input: make(chan core.AudioChunk)}, "be kind", core.NewLogger(nil))
	require.NoError(t, err)

	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	assert.Equal(t, []string{
		"TransportInputHandler",
		"VADHandler",
		"STTHandler",
		"ContextHandler",
		"LLMHandler",
		"TTSHandler",
		"TransportOutputHandler",
	}, names)
}

func TestBuildHandlersRequiresProviders(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.TTS.ServiceConfig = TTSFactoryConfig{}
	_, err := cfg.BuildHandlers(&silentRoom{}, "", core.NewLogger(nil))
	assert.ErrorContains(t, err, "tts primary service")

	cfg = DefaultSessionConfig()
	cfg.LLM.FallbackServiceConfigs = []LLMFactoryConfig{{}}
	_, err = cfg.BuildHandlers(&silentRoom{}, "", core.NewLogger(nil))
	assert.ErrorContains(t, err, "llm fallback[0]")
}

func TestInjectAPIKeysCoversFallbacks(t *testing.T) {
	groq := openaillm.Config{}
	cfg := DefaultSessionConfig()
	cfg.LLM.FallbackServiceConfigs = []LLMFactoryConfig{{GroqConfig: &groq}}
	cfg.STT.FallbackServiceConfigs = []STTFactoryConfig{{}}

	cfg.InjectAPIKeys(APIKeys{Deepgram: "dg", OpenAI: "sk", Groq: "gq"})

	assert.Equal(t, "sk", cfg.LLM.ServiceConfig.OpenAIConfig.APIKey)
	assert.Equal(t, "gq", groq.APIKey)
	assert.Equal(t, "dg", cfg.STT.ServiceConfig.DeepgramConfig.APIKey)
	assert.Equal(t, "dg", cfg.TTS.ServiceConfig.DeepgramConfig.APIKey)
}

func TestBuildLLMServicePrefersExplicitProvider(t *testing.T) {
	openai := openaillm.DefaultConfig()
	groq := openaillm.Config{APIKey: "gq"}
	svc, err := BuildLLMService(LLMFactoryConfig{OpenAIConfig: &openai, GroqConfig: &groq}, core.NewLogger(nil))
	require.NoError(t, err)

	concrete, ok := svc.(*openaillm.OpenAILLMService)
	require.True(t, ok)
	assert.Equal(t, groqBaseURL, concrete.Config().BaseURL)

	_, err = BuildLLMService(LLMFactoryConfig{}, nil)
	assert.Error(t, err)
}

func TestSessionConfigFromJSON(t *testing.T) {
	cfg, err := SessionConfigFromJSON([]byte(`{"context": {"max_messages": 12}, "tts": {"service": {"deepgram": {"model": "aura-luna-en"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Context.MaxMessages)
	assert.Equal(t, "aura-luna-en", cfg.TTS.ServiceConfig.DeepgramConfig.Model)
	assert.Equal(t, 24000, cfg.TTS.ServiceConfig.DeepgramConfig.SampleRate)
}

func TestTTSFallbackProviders(t *testing.T) {
	cartesia := cartesiatts.DefaultConfig()
	eleven := elevenlabstts.DefaultConfig()
	cfg := DefaultSessionConfig()
	cfg.TTS.FallbackServiceConfigs = []TTSFactoryConfig{
		{CartesiaConfig: &cartesia},
		{ElevenLabsConfig: &eleven},
	}

	cfg.InjectAPIKeys(APIKeys{Cartesia: "ct", ElevenLabs: "el"})
	assert.Equal(t, "ct", cartesia.APIKey)
	assert.Equal(t, "el", eleven.APIKey)

	svc, err := BuildTTSService(TTSFactoryConfig{CartesiaConfig: &cartesia}, core.NewLogger(nil))
	require.NoError(t, err)
	assert.IsType(t, &cartesiatts.CartesiaTTS{}, svc)

	svc, err = BuildTTSService(TTSFactoryConfig{ElevenLabsConfig: &eleven}, core.NewLogger(nil))
	require.NoError(t, err)
	assert.IsType(t, &elevenlabstts.ElevenLabsTTS{}, svc)

	_, err = BuildTTSService(TTSFactoryConfig{}, nil)
	assert.Error(t, err)
}
