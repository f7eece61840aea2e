package factories

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicekit/core"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

const settingsJSON = `{
	"transport": {"livekit": {"agent_name": "coach", "max_jobs": 4}},
	"session_config": {
		"llm": {"service": {"groq": {"model": "llama-3.1-8b-instant"}}},
		"stt": {"handler": {"min_turn_duration": 0.5}}
	},
	"practice": {"idle_threshold": 20, "reply_timeout": 10},
	"log_dir": "/var/log/practice"
}`

func TestSettingsConfigFromJSONOverlaysDefaults(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(settingsJSON))
	require.NoError(t, err)

	require.NotNil(t, cfg.Transport.LiveKitConfig)
	assert.Equal(t, "coach", cfg.Transport.LiveKitConfig.AgentName)
	assert.Equal(t, uint32(4), cfg.Transport.LiveKitConfig.MaxJobs)
	assert.Equal(t, "/var/log/practice", cfg.LogDir)

	assert.Equal(t, 0.5, cfg.Session.STT.HandlerConfig.MinTurnDuration)
	require.NotNil(t, cfg.Session.STT.ServiceConfig.DeepgramConfig)
	assert.Equal(t, "nova-2", cfg.Session.STT.ServiceConfig.DeepgramConfig.Model)
	require.NotNil(t, cfg.Session.LLM.ServiceConfig.GroqConfig)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Session.LLM.ServiceConfig.GroqConfig.Model)

	orch := cfg.OrchestratorConfig()
	assert.Equal(t, 20*time.Second, orch.Policy.IdleThreshold)
	assert.Equal(t, time.Second, orch.Policy.TickInterval)
	assert.Equal(t, 10*time.Second, orch.ReplyTimeout)
}

func TestSettingsConfigFromJSONRejectsMalformed(t *testing.T) {
	_, err := SettingsConfigFromJSON([]byte(`{"practice": `))
	assert.Error(t, err)
}

func TestOrchestratorConfigKeepsDefaultsForNonPositive(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.Practice = PracticeSettings{IdleThreshold: -1}
	orch := cfg.OrchestratorConfig()
	assert.Equal(t, 30*time.Second, orch.Policy.IdleThreshold)
	assert.Equal(t, 30*time.Second, orch.ReplyTimeout)
}

func TestLoadSettingsFromBase64(t *testing.T) {
	env := envMap(map[string]string{
		"SETTINGS_JSON_B64":  base64.StdEncoding.EncodeToString([]byte(settingsJSON)),
		"LIVEKIT_URL":        "wss://lk.example.com",
		"LIVEKIT_API_KEY":    "lk-key",
		"LIVEKIT_API_SECRET": "lk-secret",
		"DEEPGRAM_API_KEY":   "dg-key",
		"GROQ_API_KEY":       "groq-key",
		"SILERO_MODEL_PATH":  "/models/silero.onnx",
	})

	settings, keys, err := LoadSettings(env)
	require.NoError(t, err)

	assert.Equal(t, "dg-key", keys.Deepgram)
	lk := settings.Transport.LiveKitConfig
	assert.Equal(t, "wss://lk.example.com", lk.URL)
	assert.Equal(t, "lk-key", lk.APIKey)
	assert.Equal(t, "lk-secret", lk.APISecret)

	assert.Equal(t, "dg-key", settings.Session.STT.ServiceConfig.DeepgramConfig.APIKey)
	assert.Equal(t, "dg-key", settings.Session.TTS.ServiceConfig.DeepgramConfig.APIKey)
	assert.Equal(t, "groq-key", settings.Session.LLM.ServiceConfig.GroqConfig.APIKey)
	assert.Equal(t, "/models/silero.onnx", settings.Session.VAD.ServiceConfig.OnnxPath)
}

func TestLoadSettingsRejectsBadBase64(t *testing.T) {
	_, _, err := LoadSettings(envMap(map[string]string{"SETTINGS_JSON_B64": "%%%"}))
	assert.Error(t, err)
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"practice": {"tick_interval": 0.5}}`), 0o644))

	settings, _, err := LoadSettings(envMap(map[string]string{"SETTINGS_PATH": path}))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, settings.OrchestratorConfig().Policy.TickInterval)
}

func TestLoadSettingsMissingExplicitFile(t *testing.T) {
	_, _, err := LoadSettings(envMap(map[string]string{"SETTINGS_PATH": filepath.Join(t.TempDir(), "absent.json")}))
	assert.Error(t, err)
}

func TestInjectKeepsConfiguredCredentials(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.Transport.LiveKitConfig.APIKey = "from-file"
	cfg.Session.LLM.ServiceConfig.OpenAIConfig.APIKey = "sk-file"

	cfg.InjectEnv(envMap(map[string]string{"LIVEKIT_API_KEY": "from-env", "OPENAI_API_KEY": "sk-env"}))

	assert.Equal(t, "from-file", cfg.Transport.LiveKitConfig.APIKey)
	assert.Equal(t, "sk-file", cfg.Session.LLM.ServiceConfig.OpenAIConfig.APIKey)
}

func TestProviderConfig(t *testing.T) {
	cfg := DefaultTransportFactoryConfig()
	cfg.LiveKitConfig.URL = "wss://lk.example.com"
	cfg.LiveKitConfig.AgentName = "coach"
	cfg.LiveKitConfig.DrainTimeoutSeconds = 60
	cfg.LiveKitConfig.AudioSampleRate = 48000

	lk, err := cfg.ProviderConfig("/tmp/logs", nil, core.NewLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "wss://lk.example.com", lk.URL)
	assert.Equal(t, "coach", lk.AgentName)
	assert.Equal(t, "coach", lk.RoomOptions.AgentName)
	assert.Equal(t, time.Minute, lk.DrainTimeout)
	assert.Equal(t, 48000, lk.RoomOptions.AudioSampleRate)
	assert.Equal(t, "/tmp/logs", lk.LogDir)
	assert.NotNil(t, lk.Gatherer)

	_, err = TransportFactoryConfig{}.ProviderConfig("", nil, nil)
	assert.Error(t, err)
}

func TestBuildLiveKitProviderRequiresCredentials(t *testing.T) {
	_, err := DefaultTransportFactoryConfig().BuildLiveKitProvider("", nil, core.NewLogger(nil))
	assert.Error(t, err)
}
