package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"practicekit/core"
)

const (
	defaultElevenLabsURL        = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultElevenLabsVoiceID    = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultElevenLabsModelID    = "eleven_turbo_v2_5"
	defaultElevenLabsSampleRate = 24000
)

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type ElevenLabsTTSConfig struct {
	APIKey        string        `json:"api_key"`
	BaseURL       string        `json:"base_url"`
	VoiceID       string        `json:"voice_id"`
	ModelID       string        `json:"model_id"`
	SampleRate    int           `json:"sample_rate"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func DefaultConfig() ElevenLabsTTSConfig {
	return ElevenLabsTTSConfig{
		BaseURL:    defaultElevenLabsURL,
		VoiceID:    defaultElevenLabsVoiceID,
		ModelID:    defaultElevenLabsModelID,
		SampleRate: defaultElevenLabsSampleRate,
		VoiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
}

// ElevenLabsTTS speaks text through the stream-input websocket. The stream
// ends once the final message is sent, so each synthesis dials its own
// connection.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer
	ctx    context.Context
}

type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
	Flush         bool           `json:"flush,omitempty"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaults.VoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaults.ModelID
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.VoiceSettings == (VoiceSettings{}) {
		config.VoiceSettings = defaults.VoiceSettings
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "elevenlabs_tts"}),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (e *ElevenLabsTTS) Initialize(ctx context.Context) error {
	if e.config.APIKey == "" {
		return errors.New("elevenlabs: API key is required")
	}
	e.ctx = ctx
	return nil
}

func (e *ElevenLabsTTS) Cleanup() error { return nil }

func (e *ElevenLabsTTS) Reset() error { return nil }

func (e *ElevenLabsTTS) buildURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(e.config.BaseURL, "/") + "/" + e.config.VoiceID + "/stream-input")
	if err != nil {
		return "", fmt.Errorf("elevenlabs: parse base url: %w", err)
	}
	q := base.Query()
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", fmt.Sprintf("pcm_%d", e.config.SampleRate))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Synthesize streams audio for text to outChan until ElevenLabs marks the
// stream final or closes the connection.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string, outChan chan<- core.AudioChunk) error {
	if e.ctx == nil {
		return errors.New("elevenlabs: service not initialized")
	}
	wsURL, err := e.buildURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("xi-api-key", e.config.APIKey)
	conn, _, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("elevenlabs: connect: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	settings := e.config.VoiceSettings
	messages := []textMessage{
		{Text: " ", VoiceSettings: &settings},
		{Text: text + " ", Flush: true},
		{Text: ""},
	}
	for _, msg := range messages {
		data, err := sonic.Marshal(msg)
		if err != nil {
			return fmt.Errorf("elevenlabs: marshal message: %w", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("elevenlabs: send text: %w", err)
		}
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("elevenlabs: read audio: %w", err)
		}

		var resp audioMessage
		if err := sonic.Unmarshal(message, &resp); err != nil {
			e.logger.Warn("unreadable elevenlabs message", "error", err)
			continue
		}
		if resp.Error != "" {
			return fmt.Errorf("elevenlabs error: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				e.logger.Warn("failed to decode elevenlabs audio", "error", err)
			} else {
				chunk := core.AudioChunk{
					Data:       &audio,
					SampleRate: e.config.SampleRate,
					Channels:   1,
					Format:     core.PCM,
					Timestamp:  time.Now(),
				}
				select {
				case outChan <- chunk:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if resp.IsFinal {
			return nil
		}
	}
}
