package stt

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

// DeepgramSTTService streams linear16 audio to Deepgram's live transcription
// endpoint and reports final and interim transcripts.
type DeepgramSTTService struct {
	config *DeepgramConfig
	logger *core.Logger
	dialer *websocket.Dialer

	ctx context.Context

	connMu sync.Mutex
	conn   *websocket.Conn
	stop   context.CancelFunc
}

type DeepgramConfig struct {
	APIKey            string   `json:"api_key"`
	BaseURL           string   `json:"base_url"`
	Model             string   `json:"model"`
	Language          string   `json:"language"`
	InterimResults    bool     `json:"interim_results"`
	Punctuate         bool     `json:"punctuate"`
	SmartFormat       bool     `json:"smart_format"`
	FillerWords       bool     `json:"filler_words"` // Keep "um" and "uh" in transcripts so they can be coached.
	Endpointing       int      `json:"endpointing"`  // Milliseconds of silence before Deepgram finalizes; 0 leaves the server default.
	SampleRate        int      `json:"sample_rate"`
	Keyterms          []string `json:"keyterms"`
	KeepAliveInterval float64  `json:"keep_alive_interval"` // Seconds between KeepAlive messages.
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:           "wss://api.deepgram.com",
		Model:             "nova-2",
		Language:          "en-US",
		InterimResults:    true,
		Punctuate:         true,
		SmartFormat:       true,
		FillerWords:       true,
		SampleRate:        16000,
		KeepAliveInterval: 8,
	}
}

func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.deepgram.com"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramSTTService{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "deepgram_stt"}),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (d *DeepgramSTTService) Initialize(ctx context.Context) error {
	if d.config.APIKey == "" {
		return errors.New("deepgram API key is required")
	}
	d.ctx = ctx
	return nil
}

func (d *DeepgramSTTService) Cleanup() error {
	d.closeConnection()
	return nil
}

// Reset asks Deepgram to finalize whatever audio it has buffered.
func (d *DeepgramSTTService) Reset() error {
	return d.sendControl("Finalize")
}

// StartTranscriptionSession dials a new stream, replacing any previous one.
// Read failures are reported on fatalServiceErrorChan.
func (d *DeepgramSTTService) StartTranscriptionSession(
	outChan chan<- string,
	interimOutputChan chan<- string,
	fatalServiceErrorChan chan<- error,
) error {
	if d.ctx == nil {
		return errors.New("deepgram STT service not initialized")
	}
	d.closeConnection()

	wsURL, err := d.buildWebSocketURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}
	header := http.Header{"Authorization": {"Token " + d.config.APIKey}}
	conn, _, err := d.dialer.DialContext(d.ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("connect to deepgram: %w", err)
	}

	sessionCtx, stop := context.WithCancel(d.ctx)
	d.connMu.Lock()
	d.conn = conn
	d.stop = stop
	d.connMu.Unlock()

	go d.readLoop(sessionCtx, conn, outChan, interimOutputChan, fatalServiceErrorChan)
	go d.keepAlive(sessionCtx)
	d.logger.Info("transcription session started", "model", d.config.Model)
	return nil
}

func (d *DeepgramSTTService) SendTranscriptionAudio(audioData []byte) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn == nil {
		return errors.New("not connected to deepgram")
	}
	if err := d.conn.WriteMessage(websocket.BinaryMessage, audioData); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (d *DeepgramSTTService) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	outChan chan<- string,
	interimOutputChan chan<- string,
	fatalServiceErrorChan chan<- error,
) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case fatalServiceErrorChan <- fmt.Errorf("deepgram stream: %w", err):
			default:
			}
			return
		}

		transcript, final, err := parseTranscript(message)
		if err != nil {
			d.logger.Warn("unreadable deepgram message", "error", err)
			continue
		}
		if transcript == "" {
			continue
		}
		if final {
			select {
			case outChan <- transcript:
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case interimOutputChan <- transcript:
		default:
		}
	}
}

func (d *DeepgramSTTService) keepAlive(ctx context.Context) {
	interval := time.Duration(d.config.KeepAliveInterval * float64(time.Second))
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.sendControl("KeepAlive"); err != nil {
				d.logger.Debug("keep alive failed", "error", err)
			}
		}
	}
}

func (d *DeepgramSTTService) sendControl(kind string) error {
	msg, err := sonic.Marshal(controlMessage{Type: kind})
	if err != nil {
		return err
	}
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.WriteMessage(websocket.TextMessage, msg)
}

func (d *DeepgramSTTService) closeConnection() {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	if d.conn == nil {
		return
	}
	if msg, err := sonic.Marshal(controlMessage{Type: "CloseStream"}); err == nil {
		_ = d.conn.WriteMessage(websocket.TextMessage, msg)
	}
	_ = d.conn.Close()
	d.conn = nil
}

func (d *DeepgramSTTService) buildWebSocketURL() (string, error) {
	base, err := url.Parse(d.config.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}
	q := base.Query()
	if d.config.Model != "" {
		q.Set("model", d.config.Model)
	}
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	q.Set("interim_results", strconv.FormatBool(d.config.InterimResults))
	q.Set("punctuate", strconv.FormatBool(d.config.Punctuate))
	q.Set("smart_format", strconv.FormatBool(d.config.SmartFormat))
	q.Set("filler_words", strconv.FormatBool(d.config.FillerWords))
	if d.config.Endpointing > 0 {
		q.Set("endpointing", strconv.Itoa(d.config.Endpointing))
	}
	for _, term := range d.config.Keyterms {
		q.Add("keyterm", term)
	}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
	q.Set("channels", "1")
	base.RawQuery = q.Encode()
	return base.String(), nil
}

type controlMessage struct {
	Type string `json:"type"`
}

type listenResults struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseTranscript extracts the best transcript from a Results message.
// Other message types yield an empty transcript.
func parseTranscript(message []byte) (transcript string, final bool, err error) {
	var result listenResults
	if err := sonic.Unmarshal(message, &result); err != nil {
		return "", false, err
	}
	if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
		return "", false, nil
	}
	final = result.IsFinal || result.SpeechFinal || result.FromFinalize
	return result.Channel.Alternatives[0].Transcript, final, nil
}
