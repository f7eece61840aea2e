package cartesia

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"practicekit/core"
)

const (
	defaultCartesiaURL        = "wss://api.cartesia.ai/tts/websocket"
	defaultCartesiaModelID    = "sonic-2"
	defaultCartesiaVoiceID    = "a0e99841-438c-4a64-b679-ae501e7d6091" // Helpful Woman
	defaultCartesiaAPIVersion = "2024-11-13"
	defaultCartesiaLanguage   = "en"
	defaultCartesiaSampleRate = 24000
)

type CartesiaTTSConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	ModelID    string `json:"model_id"`
	VoiceID    string `json:"voice_id"`
	Language   string `json:"language"`
	APIVersion string `json:"api_version"`
	SampleRate int    `json:"sample_rate"`
}

func DefaultConfig() CartesiaTTSConfig {
	return CartesiaTTSConfig{
		BaseURL:    defaultCartesiaURL,
		ModelID:    defaultCartesiaModelID,
		VoiceID:    defaultCartesiaVoiceID,
		Language:   defaultCartesiaLanguage,
		APIVersion: defaultCartesiaAPIVersion,
		SampleRate: defaultCartesiaSampleRate,
	}
}

// CartesiaTTS speaks text over Cartesia's websocket API. Every call to
// Synthesize runs in its own context_id on one shared connection. Calls are
// serialized.
type CartesiaTTS struct {
	config CartesiaTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer

	ctx context.Context

	mu   sync.Mutex // held for the duration of a synthesis
	conn *websocket.Conn
}

type cartesiaTTSRequest struct {
	ModelID    string            `json:"model_id"`
	Transcript string            `json:"transcript"`
	Voice      cartesiaVoice     `json:"voice"`
	OutputFmt  cartesiaOutputFmt `json:"output_format"`
	ContextID  string            `json:"context_id"`
	Continue   bool              `json:"continue"`
	Language   string            `json:"language,omitempty"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFmt struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// cartesiaResponse is a JSON frame from Cartesia. Audio arrives base64
// encoded in "chunk" frames.
type cartesiaResponse struct {
	Type       string `json:"type"`
	ContextID  string `json:"context_id"`
	StatusCode int    `json:"status_code"`
	Done       bool   `json:"done"`
	Error      string `json:"error,omitempty"`
	Data       string `json:"data,omitempty"`
}

func NewCartesiaTTS(config CartesiaTTSConfig, logger *core.Logger) *CartesiaTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.ModelID == "" {
		config.ModelID = defaults.ModelID
	}
	if config.VoiceID == "" {
		config.VoiceID = defaults.VoiceID
	}
	if config.APIVersion == "" {
		config.APIVersion = defaults.APIVersion
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CartesiaTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "cartesia_tts"}),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *CartesiaTTS) Initialize(ctx context.Context) error {
	if c.config.APIKey == "" {
		return errors.New("cartesia: API key is required")
	}
	c.ctx = ctx
	return nil
}

func (c *CartesiaTTS) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeConnectionLocked()
	return nil
}

func (c *CartesiaTTS) Reset() error {
	return c.Cleanup()
}

// Synthesize streams the audio for text to outChan and returns when Cartesia
// reports the context done. Cancelling ctx drops the connection.
func (c *CartesiaTTS) Synthesize(ctx context.Context, text string, outChan chan<- core.AudioChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connectionLocked()
	if err != nil {
		return err
	}
	contextID := uuid.NewString()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := c.sendJSON(conn, c.buildRequest(text, contextID)); err != nil {
		c.closeConnectionLocked()
		return fmt.Errorf("cartesia: send transcript: %w", err)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			c.closeConnectionLocked()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("cartesia: read audio: %w", err)
		}

		if messageType == websocket.BinaryMessage {
			if err := c.forward(ctx, message, outChan); err != nil {
				c.closeConnectionLocked()
				return err
			}
			continue
		}

		var resp cartesiaResponse
		if err := sonic.Unmarshal(message, &resp); err != nil {
			c.logger.Warn("unreadable cartesia message", "error", err)
			continue
		}
		if resp.ContextID != "" && resp.ContextID != contextID {
			continue
		}
		switch resp.Type {
		case "chunk":
			if resp.Data == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				c.logger.Warn("failed to decode cartesia audio", "error", err)
				continue
			}
			if err := c.forward(ctx, audio, outChan); err != nil {
				c.closeConnectionLocked()
				return err
			}
		case "error":
			return fmt.Errorf("cartesia error (status %d): %s", resp.StatusCode, resp.Error)
		case "done":
			return nil
		}
	}
}

func (c *CartesiaTTS) forward(ctx context.Context, audio []byte, outChan chan<- core.AudioChunk) error {
	chunk := core.AudioChunk{
		Data:       &audio,
		SampleRate: c.config.SampleRate,
		Channels:   1,
		Format:     core.PCM,
		Timestamp:  time.Now(),
	}
	select {
	case outChan <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CartesiaTTS) buildRequest(transcript, contextID string) cartesiaTTSRequest {
	return cartesiaTTSRequest{
		ModelID:    c.config.ModelID,
		Transcript: transcript,
		Voice:      cartesiaVoice{Mode: "id", ID: c.config.VoiceID},
		OutputFmt:  cartesiaOutputFmt{Container: "raw", Encoding: "pcm_s16le", SampleRate: c.config.SampleRate},
		ContextID:  contextID,
		Language:   c.config.Language,
	}
}

func (c *CartesiaTTS) buildURL() (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("cartesia: parse base url: %w", err)
	}
	q := base.Query()
	q.Set("api_key", c.config.APIKey)
	q.Set("cartesia_version", c.config.APIVersion)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (c *CartesiaTTS) connectionLocked() (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	if c.ctx == nil {
		return nil, errors.New("cartesia: service not initialized")
	}
	wsURL, err := c.buildURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.DialContext(c.ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cartesia: connect: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *CartesiaTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cartesia: marshal message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *CartesiaTTS) closeConnectionLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
