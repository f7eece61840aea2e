package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"practicekit/core"
)

// maxCharsPerSpeak is the most text sent in one Speak message. Deepgram
// rejects larger buffers between flushes.
const maxCharsPerSpeak = 2000

type DeepgramTTSConfig struct {
	APIKey     string                   `json:"api_key"`
	BaseURL    string                   `json:"base_url"`
	Model      string                   `json:"model"`
	SampleRate int                      `json:"sample_rate"`
	Encoding   core.AudioEncodingFormat `json:"encoding"`
}

// DefaultConfig returns a DeepgramTTSConfig with sensible defaults
func DefaultConfig() DeepgramTTSConfig {
	return DeepgramTTSConfig{
		BaseURL:    "wss://api.deepgram.com/v1/speak",
		Model:      "aura-asteria-en",
		SampleRate: 24000,
		Encoding:   core.PCM,
	}
}

// DeepgramTTS speaks text over Deepgram's streaming websocket API. The
// connection is opened lazily and reused across calls; calls are serialized.
type DeepgramTTS struct {
	config DeepgramTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer

	ctx context.Context

	mu   sync.Mutex // held for the duration of a synthesis
	conn *websocket.Conn
}

func NewDeepgramTTS(config DeepgramTTSConfig, logger *core.Logger) *DeepgramTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "deepgram_tts"}),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func encodingToString(encoding core.AudioEncodingFormat) string {
	switch encoding {
	case core.ULAW:
		return "mulaw"
	case core.ALAW:
		return "alaw"
	default:
		return "linear16"
	}
}

func (d *DeepgramTTS) Initialize(ctx context.Context) error {
	if d.config.APIKey == "" {
		return errors.New("deepgram API key is required")
	}
	d.ctx = ctx
	return nil
}

func (d *DeepgramTTS) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		_ = d.sendJSON(d.conn, speakControl{Type: "Close"})
		d.closeConnectionLocked()
	}
	return nil
}

func (d *DeepgramTTS) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeConnectionLocked()
	return nil
}

// Synthesize sends text and streams the returned audio to outChan until
// Deepgram acknowledges the flush. Cancelling ctx drops the connection so
// no stale audio is read by the next call.
func (d *DeepgramTTS) Synthesize(ctx context.Context, text string, outChan chan<- core.AudioChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connectionLocked()
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, part := range splitText(text, maxCharsPerSpeak) {
		if err := d.sendJSON(conn, speakText{Type: "Speak", Text: part}); err != nil {
			d.closeConnectionLocked()
			return fmt.Errorf("send text: %w", err)
		}
	}
	if err := d.sendJSON(conn, speakControl{Type: "Flush"}); err != nil {
		d.closeConnectionLocked()
		return fmt.Errorf("send flush: %w", err)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			d.closeConnectionLocked()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read audio: %w", err)
		}

		if messageType == websocket.BinaryMessage {
			data := message
			chunk := core.AudioChunk{
				Data:       &data,
				SampleRate: d.config.SampleRate,
				Channels:   1,
				Format:     d.config.Encoding,
				Timestamp:  time.Now(),
			}
			select {
			case outChan <- chunk:
			case <-ctx.Done():
				d.closeConnectionLocked()
				return ctx.Err()
			}
			continue
		}

		var status speakStatus
		if err := sonic.Unmarshal(message, &status); err != nil {
			d.logger.Warn("unreadable deepgram message", "error", err)
			continue
		}
		switch status.Type {
		case "Flushed":
			return nil
		case "Warning":
			d.logger.Warn("deepgram warning", "code", status.Code, "description", status.Description)
		case "Error":
			d.closeConnectionLocked()
			return fmt.Errorf("deepgram error %s: %s", status.Code, status.Description)
		}
	}
}

func (d *DeepgramTTS) connectionLocked() (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}
	if d.ctx == nil {
		return nil, errors.New("deepgram TTS service not initialized")
	}
	wsURL, err := d.buildURL()
	if err != nil {
		return nil, err
	}
	header := http.Header{"Authorization": {"Token " + d.config.APIKey}}
	conn, _, err := d.dialer.DialContext(d.ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("connect to deepgram: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *DeepgramTTS) buildURL() (string, error) {
	base, err := url.Parse(d.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := base.Query()
	q.Set("model", d.config.Model)
	q.Set("encoding", encodingToString(d.config.Encoding))
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (d *DeepgramTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (d *DeepgramTTS) closeConnectionLocked() {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

// splitText cuts text into pieces of at most limit bytes, preferring spaces.
func splitText(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if text[i] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

type speakText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type speakControl struct {
	Type string `json:"type"`
}

type speakStatus struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}
