package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`    // Role of the message sender (user, assistant or system).
	Message string         `json:"message"` // Content of the message.
}

type LLMContext struct {
	Messages []LLMMessage
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

// Clone returns a deep copy so the snapshot can be handed to another goroutine.
func (c *LLMContext) Clone() LLMContext {
	messages := make([]LLMMessage, len(c.Messages))
	copy(messages, c.Messages)
	return LLMContext{Messages: messages}
}

// Trim keeps the leading system messages and at most maxMessages of the most
// recent conversation messages. A non-positive limit disables trimming.
func (c *LLMContext) Trim(maxMessages int) {
	if maxMessages <= 0 {
		return
	}
	head := 0
	for head < len(c.Messages) && c.Messages[head].Role == LLMMessageRoleSystem {
		head++
	}
	rest := len(c.Messages) - head
	if rest <= maxMessages {
		return
	}
	trimmed := make([]LLMMessage, 0, head+maxMessages)
	trimmed = append(trimmed, c.Messages[:head]...)
	trimmed = append(trimmed, c.Messages[len(c.Messages)-maxMessages:]...)
	c.Messages = trimmed
}
