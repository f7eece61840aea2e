package context

import (
	"sync"

	"github.com/google/uuid"

	"practicekit/core"
	"practicekit/events/llm"
	"practicekit/events/stt"
)

// ContextHandler owns the conversation history sent to the language model.
// It turns committed user turns and explicit reply requests into generation
// requests, and records completed assistant replies.
type ContextHandler struct {
	*core.BaseHandler
	config ContextConfig

	mu      sync.Mutex
	context core.LLMContext
}

func NewContextHandler(instructions string, config ContextConfig, logger *core.Logger) *ContextHandler {
	h := &ContextHandler{
		BaseHandler: core.NewBaseHandler("ContextHandler", nil, nil, logger),
		config:      config,
	}
	if instructions != "" {
		h.context.AddSystemMessage(instructions)
	}
	return h
}

func (h *ContextHandler) Start() error {
	go h.RunEventLoop(h.HandleEvent)
	return nil
}

func (h *ContextHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *stt.STTFinalOutputEvent:
		// The transcript continues to the tail so the session can record it.
		h.SendPacket(eventPacket)

		h.mu.Lock()
		h.context.AddUserMessage(event.Text)
		h.context.Trim(h.config.MaxMessages)
		snapshot := h.context.Clone()
		h.mu.Unlock()

		h.Relay(&llm.LLMGenerateResponseEvent{RequestID: uuid.NewString(), Context: snapshot})
		return nil

	case *llm.LLMGenerateReplyEvent:
		h.mu.Lock()
		snapshot := h.context.Clone()
		h.mu.Unlock()
		if event.Instructions != "" {
			snapshot.AddSystemMessage(event.Instructions)
		}
		requestID := event.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		h.Relay(&llm.LLMGenerateResponseEvent{RequestID: requestID, Context: snapshot})
		return nil

	case *llm.LLMResponseCompletedEvent:
		if event.FullText != "" {
			h.mu.Lock()
			h.context.AddAssistantMessage(event.FullText)
			h.context.Trim(h.config.MaxMessages)
			h.mu.Unlock()
		}
	}
	h.SendPacket(eventPacket)
	return nil
}

// Snapshot returns a copy of the current conversation context.
func (h *ContextHandler) Snapshot() core.LLMContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.context.Clone()
}

func (h *ContextHandler) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var system []core.LLMMessage
	for _, message := range h.context.Messages {
		if message.Role == core.LLMMessageRoleSystem {
			system = append(system, message)
		}
	}
	h.context.Messages = system
	return nil
}
