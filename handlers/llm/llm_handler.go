package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"practicekit/core"
	"practicekit/events/llm"
	"practicekit/events/vad"
)

type LLMService interface {
	core.IService
	// RunCompletion streams the reply for llmContext into outChan and
	// returns once the reply is complete or ctx is cancelled.
	RunCompletion(ctx context.Context, llmContext core.LLMContext, outChan chan<- string) error
}

var (
	errInterrupted = errors.New("interrupted")
	errSuperseded  = errors.New("superseded")
)

// LLMHandler runs one completion at a time. A new generation request cancels
// the one in flight. Completion and failure events are broadcast to the head
// of the chain so the context handler can record the reply.
type LLMHandler struct {
	*core.BaseHandler
	config LLMHandlerConfig

	mu           sync.Mutex
	activeID     string
	cancelActive context.CancelCauseFunc
}

// NewLLMHandler creates a new LLM handler.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewLLMHandler(service LLMService, backupServices []LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	return &LLMHandler{
		BaseHandler: core.NewBaseHandler("LLMHandler", service, typedServices, logger),
		config:      config,
	}
}

func (h *LLMHandler) Start() error {
	go h.RunEventLoop(h.HandleEvent)
	return nil
}

func (h *LLMHandler) HandleEvent(packet *core.EventPacket) error {
	switch e := packet.Event.(type) {
	case *llm.LLMGenerateResponseEvent:
		h.startGeneration(e)
		return nil
	case *vad.VadUserSpeechStartedEvent:
		if h.config.InterruptOnSpeech {
			h.cancelGeneration(errInterrupted)
		}
	}
	h.SendPacket(packet)
	return nil
}

func (h *LLMHandler) startGeneration(e *llm.LLMGenerateResponseEvent) {
	ctx, cancel := context.WithCancelCause(h.Ctx)
	if h.config.CompletionTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(h.config.CompletionTimeout*float64(time.Second)))
		prevCancel := cancel
		cancel = func(cause error) {
			prevCancel(cause)
			cancelTimeout()
		}
	}

	h.mu.Lock()
	if h.cancelActive != nil {
		h.cancelActive(errSuperseded)
	}
	h.activeID = e.RequestID
	h.cancelActive = cancel
	h.mu.Unlock()

	go h.generate(ctx, cancel, e)
}

func (h *LLMHandler) cancelGeneration(cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelActive != nil {
		h.cancelActive(cause)
		h.cancelActive = nil
		h.activeID = ""
	}
}

func (h *LLMHandler) isActive(requestID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeID == requestID
}

func (h *LLMHandler) generate(ctx context.Context, cancel context.CancelCauseFunc, e *llm.LLMGenerateResponseEvent) {
	defer cancel(nil)

	h.Relay(&llm.LLMResponseStartedEvent{RequestID: e.RequestID})

	service := h.CurrentService().(LLMService)
	chunks := make(chan string, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- service.RunCompletion(ctx, e.Context, chunks)
	}()

	var fullText strings.Builder
	relay := func(chunk string) {
		if chunk == "" || !h.isActive(e.RequestID) {
			return
		}
		fullText.WriteString(chunk)
		h.Relay(&llm.LLMResponseChunkEvent{RequestID: e.RequestID, Chunk: chunk})
	}

	var err error
	for done := false; !done; {
		select {
		case chunk := <-chunks:
			relay(chunk)
		case err = <-errCh:
			done = true
		}
	}
	for drained := false; !drained; {
		select {
		case chunk := <-chunks:
			relay(chunk)
		default:
			drained = true
		}
	}

	h.mu.Lock()
	if h.activeID == e.RequestID {
		h.activeID = ""
		h.cancelActive = nil
	}
	h.mu.Unlock()

	if err == nil && ctx.Err() == nil {
		h.Broadcast(&llm.LLMResponseCompletedEvent{RequestID: e.RequestID, FullText: strings.TrimSpace(fullText.String())})
		return
	}

	if h.Ctx.Err() != nil {
		return
	}
	var reason string
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errSuperseded), errors.Is(cause, errInterrupted):
		reason = cause.Error()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		reason = "timeout"
	case err != nil:
		reason = err.Error()
		h.HandleError(err)
	default:
		reason = "cancelled"
	}
	h.Logger.Warn("completion did not finish", "request_id", e.RequestID, "reason", reason)
	h.Broadcast(&llm.LLMResponseFailedEvent{RequestID: e.RequestID, Error: reason})
}
