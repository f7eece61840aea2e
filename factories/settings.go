package factories

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"practicekit/orchestrator"
)

// PracticeSettings tunes the session orchestration. Durations are in seconds.
type PracticeSettings struct {
	IdleThreshold float64 `json:"idle_threshold"`
	TickInterval  float64 `json:"tick_interval"`
	ReplyTimeout  float64 `json:"reply_timeout"`
}

func DefaultPracticeSettings() PracticeSettings {
	cfg := orchestrator.DefaultConfig()
	return PracticeSettings{
		IdleThreshold: cfg.Policy.IdleThreshold.Seconds(),
		TickInterval:  cfg.Policy.TickInterval.Seconds(),
		ReplyTimeout:  cfg.ReplyTimeout.Seconds(),
	}
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	Transport TransportFactoryConfig `json:"transport"`
	Session   SessionConfig          `json:"session_config"`
	Practice  PracticeSettings       `json:"practice"`
	// LogDir, when set, receives one .jsonl log per session.
	LogDir string `json:"log_dir,omitempty"`
}

func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Transport: DefaultTransportFactoryConfig(),
		Session:   DefaultSessionConfig(),
		Practice:  DefaultPracticeSettings(),
	}
}

// OrchestratorConfig converts the practice settings into orchestrator.Config.
// Non-positive values keep the defaults.
func (s SettingsConfig) OrchestratorConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	if s.Practice.IdleThreshold > 0 {
		cfg.Policy.IdleThreshold = seconds(s.Practice.IdleThreshold)
	}
	if s.Practice.TickInterval > 0 {
		cfg.Policy.TickInterval = seconds(s.Practice.TickInterval)
	}
	if s.Practice.ReplyTimeout > 0 {
		cfg.ReplyTimeout = seconds(s.Practice.ReplyTimeout)
	}
	return cfg
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// SettingsConfigFromJSON overlays data on DefaultSettingsConfig.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// LoadSettings reads settings from SETTINGS_JSON_B64 when set, otherwise
// from the file named by SETTINGS_PATH (default ./settings.json). A missing
// settings file is not an error. Credentials are then injected from the
// environment.
func LoadSettings(getenv func(string) string) (SettingsConfig, APIKeys, error) {
	settings := DefaultSettingsConfig()
	var err error

	if b64 := getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			return DefaultSettingsConfig(), APIKeys{}, fmt.Errorf("settings: decode SETTINGS_JSON_B64: %w", decErr)
		}
		if settings, err = SettingsConfigFromJSON(data); err != nil {
			return DefaultSettingsConfig(), APIKeys{}, err
		}
	} else {
		path := getenv("SETTINGS_PATH")
		explicit := path != ""
		if !explicit {
			path = "./settings.json"
		}
		if _, statErr := os.Stat(path); statErr == nil || explicit {
			if settings, err = SettingsConfigFromFile(path); err != nil {
				return DefaultSettingsConfig(), APIKeys{}, err
			}
		}
	}

	keys := settings.InjectEnv(getenv)
	return settings, keys, nil
}

// InjectEnv fills empty credentials from the environment and returns the
// service keys it found.
func (s *SettingsConfig) InjectEnv(getenv func(string) string) APIKeys {
	s.Transport.InjectProviderKeys(ProviderKeys{
		LiveKitURL:       getenv("LIVEKIT_URL"),
		LiveKitAPIKey:    getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: getenv("LIVEKIT_API_SECRET"),
	})
	keys := APIKeys{
		Deepgram:   getenv("DEEPGRAM_API_KEY"),
		OpenAI:     getenv("OPENAI_API_KEY"),
		Groq:       getenv("GROQ_API_KEY"),
		Together:   getenv("TOGETHER_API_KEY"),
		Cartesia:   getenv("CARTESIA_API_KEY"),
		ElevenLabs: getenv("ELEVENLABS_API_KEY"),
	}
	s.Session.InjectAPIKeys(keys)
	if path := getenv("SILERO_MODEL_PATH"); path != "" {
		s.Session.VAD.ServiceConfig.OnnxPath = path
	}
	if path := getenv("ONNX_RUNTIME_PATH"); path != "" {
		s.Session.VAD.ServiceConfig.OnnxRuntimePath = path
	}
	if dir := getenv("SESSION_LOG_DIR"); dir != "" && s.LogDir == "" {
		s.LogDir = dir
	}
	return keys
}
