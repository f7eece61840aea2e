package factories

import (
	"errors"

	"practicekit/core"
	stthandler "practicekit/handlers/stt"
	deepgramstt "practicekit/services/deepgram/stt"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
type STTFactoryConfig struct {
	DeepgramConfig *deepgramstt.DeepgramConfig `json:"deepgram,omitempty"`
}

func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (stthandler.ISTTService, error) {
	if config.DeepgramConfig != nil {
		// Each session gets its own copy; the service fills in defaults.
		cfg := *config.DeepgramConfig
		return deepgramstt.NewDeepgramSTTService(&cfg, logger), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
