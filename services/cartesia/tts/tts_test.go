package cartesia

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicekit/core"
)

func TestSynthesizeReadsOwnContext(t *testing.T) {
	upgrader := websocket.Upgrader{}
	requests := make(chan cartesiaTTSRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req cartesiaTTSRequest
		if err := sonic.Unmarshal(message, &req); err != nil {
			return
		}
		requests <- req

		audio := base64.StdEncoding.EncodeToString([]byte{5, 0, 6, 0})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chunk","context_id":"someone-else","data":"`+audio+`"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chunk","context_id":"`+req.ContextID+`","data":"`+audio+`"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"done","context_id":"`+req.ContextID+`","done":true}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.BaseURL = "ws" + strings.TrimPrefix(server.URL, "http")
	c := NewCartesiaTTS(cfg, nil)
	require.NoError(t, c.Initialize(context.Background()))
	defer c.Cleanup()

	out := make(chan core.AudioChunk, 4)
	require.NoError(t, c.Synthesize(context.Background(), "Tell me about your city.", out))

	select {
	case req := <-requests:
		assert.Equal(t, "Tell me about your city.", req.Transcript)
		assert.Equal(t, "pcm_s16le", req.OutputFmt.Encoding)
		assert.False(t, req.Continue)
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}

	require.Len(t, out, 1)
	chunk := <-out
	assert.Equal(t, []byte{5, 0, 6, 0}, *chunk.Data)
	assert.Equal(t, 24000, chunk.SampleRate)
}

func TestInitializeRequiresKey(t *testing.T) {
	c := NewCartesiaTTS(CartesiaTTSConfig{}, nil)
	assert.Error(t, c.Initialize(context.Background()))
}

func TestSynthesizeBeforeInitialize(t *testing.T) {
	c := NewCartesiaTTS(DefaultConfig(), nil)
	err := c.Synthesize(context.Background(), "hi", make(chan core.AudioChunk, 1))
	assert.Error(t, err)
}
