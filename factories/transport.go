package factories

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"practicekit/core"
	"practicekit/transports/livekit"
)

// LiveKitProviderConfig holds JSON-serialisable settings for the LiveKit worker.
// Secrets (URL, APIKey, APISecret) can be omitted and injected via InjectProviderKeys.
type LiveKitProviderConfig struct {
	URL                 string `json:"url,omitempty"`
	APIKey              string `json:"api_key,omitempty"`
	APISecret           string `json:"api_secret,omitempty"`
	AgentName           string `json:"agent_name,omitempty"`
	Version             string `json:"version,omitempty"`
	MaxJobs             uint32 `json:"max_jobs,omitempty"`
	DevMode             bool   `json:"dev_mode"`
	HTTPPort            int    `json:"http_port,omitempty"`
	DrainTimeoutSeconds int    `json:"drain_timeout_seconds,omitempty"`
	AudioSampleRate     int    `json:"audio_sample_rate,omitempty"`
}

// TransportFactoryConfig configures the room transport.
type TransportFactoryConfig struct {
	LiveKitConfig *LiveKitProviderConfig `json:"livekit,omitempty"`
}

// ProviderKeys holds credentials for the transport provider.
type ProviderKeys struct {
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
}

func DefaultTransportFactoryConfig() TransportFactoryConfig {
	base := livekit.DefaultConfig()
	return TransportFactoryConfig{
		LiveKitConfig: &LiveKitProviderConfig{
			AgentName:       base.RoomOptions.AgentName,
			Version:         base.Version,
			MaxJobs:         base.MaxJobs,
			HTTPPort:        base.HTTPPort,
			AudioSampleRate: base.RoomOptions.AudioSampleRate,
		},
	}
}

// InjectProviderKeys applies credentials only where the config left them empty,
// so keys already set in the settings file are preserved.
func (c *TransportFactoryConfig) InjectProviderKeys(keys ProviderKeys) {
	if c.LiveKitConfig == nil {
		return
	}
	lk := c.LiveKitConfig
	if lk.URL == "" {
		lk.URL = keys.LiveKitURL
	}
	if lk.APIKey == "" {
		lk.APIKey = keys.LiveKitAPIKey
	}
	if lk.APISecret == "" {
		lk.APISecret = keys.LiveKitAPISecret
	}
}

// ProviderConfig converts the settings into a livekit.Config.
func (c TransportFactoryConfig) ProviderConfig(logDir string, gatherer prometheus.Gatherer, logger *core.Logger) (livekit.Config, error) {
	if c.LiveKitConfig == nil {
		return livekit.Config{}, errors.New("TransportFactoryConfig: no provider config specified")
	}
	cfg := livekit.DefaultConfig()
	lk := c.LiveKitConfig
	cfg.URL = lk.URL
	cfg.APIKey = lk.APIKey
	cfg.APISecret = lk.APISecret
	if lk.AgentName != "" {
		cfg.AgentName = lk.AgentName
		cfg.RoomOptions.AgentName = lk.AgentName
	}
	if lk.Version != "" {
		cfg.Version = lk.Version
	}
	if lk.MaxJobs != 0 {
		cfg.MaxJobs = lk.MaxJobs
	}
	cfg.DevMode = lk.DevMode
	if lk.HTTPPort != 0 {
		cfg.HTTPPort = lk.HTTPPort
	}
	if lk.DrainTimeoutSeconds != 0 {
		cfg.DrainTimeout = time.Duration(lk.DrainTimeoutSeconds) * time.Second
	}
	if lk.AudioSampleRate != 0 {
		cfg.RoomOptions.AudioSampleRate = lk.AudioSampleRate
	}
	cfg.LogDir = logDir
	if gatherer != nil {
		cfg.Gatherer = gatherer
	}
	cfg.Logger = logger
	return cfg, nil
}

// BuildLiveKitProvider constructs the LiveKit worker described by the config.
func (c TransportFactoryConfig) BuildLiveKitProvider(logDir string, gatherer prometheus.Gatherer, logger *core.Logger) (*livekit.Provider, error) {
	cfg, err := c.ProviderConfig(logDir, gatherer, logger)
	if err != nil {
		return nil, err
	}
	return livekit.NewProvider(cfg)
}
