package llm

import "practicekit/core"

// LLMGenerateReplyEvent asks the pipeline to produce an assistant turn. The
// instructions apply to this reply only and are not kept in the context.
type LLMGenerateReplyEvent struct {
	RequestID    string
	Instructions string
}

func (*LLMGenerateReplyEvent) GetId() string {
	return "llm.generate_reply"
}

type LLMGenerateResponseEvent struct {
	RequestID string
	Context   core.LLMContext `json:"context"`
}

func (*LLMGenerateResponseEvent) GetId() string {
	return "llm.generate_response"
}

type LLMResponseStartedEvent struct {
	RequestID string
}

func (e *LLMResponseStartedEvent) GetId() string {
	return "llm.response_started"
}

type LLMResponseChunkEvent struct {
	RequestID string
	Chunk     string // A chunk of the LLM response text.
}

func (e *LLMResponseChunkEvent) GetId() string {
	return "llm.response_chunk"
}

type LLMResponseCompletedEvent struct {
	RequestID string
	FullText  string // The complete LLM response text.
}

func (e *LLMResponseCompletedEvent) GetId() string {
	return "llm.response_completed"
}

type LLMResponseFailedEvent struct {
	RequestID string
	Error     string
}

func (e *LLMResponseFailedEvent) GetId() string {
	return "llm.response_failed"
}
