package factories

import (
	"errors"

	"practicekit/core"
	ttshandler "practicekit/handlers/tts"
	cartesiatts "practicekit/services/cartesia/tts"
	deepgramtts "practicekit/services/deepgram/tts"
	elevenlabstts "practicekit/services/elevenlabs/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
type TTSFactoryConfig struct {
	DeepgramConfig   *deepgramtts.DeepgramTTSConfig     `json:"deepgram,omitempty"`
	CartesiaConfig   *cartesiatts.CartesiaTTSConfig     `json:"cartesia,omitempty"`
	ElevenLabsConfig *elevenlabstts.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
}

// BuildTTSService picks the first configured provider: Deepgram, Cartesia,
// then ElevenLabs.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.TTSService, error) {
	if config.DeepgramConfig != nil {
		return deepgramtts.NewDeepgramTTS(*config.DeepgramConfig, logger), nil
	}
	if config.CartesiaConfig != nil {
		return cartesiatts.NewCartesiaTTS(*config.CartesiaConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabstts.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
