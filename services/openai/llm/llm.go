package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"practicekit/core"
)

// OpenAILLMService produces conversation replies with the OpenAI chat API.
type OpenAILLMService struct {
	config Config
	logger *core.Logger

	mu     sync.RWMutex
	client *openai.Client
}

type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"` // Overrides the API endpoint, e.g. for a compatible proxy.
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Streaming   bool    `json:"streaming"`
}

// DefaultConfig keeps replies short enough to be spoken comfortably.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   150,
		Temperature: 0.7,
		Streaming:   true,
	}
}

func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "openai_llm"}),
	}
}

// Config reports the effective configuration.
func (s *OpenAILLMService) Config() Config {
	return s.config
}

func (s *OpenAILLMService) Initialize(ctx context.Context) error {
	if s.config.APIKey == "" {
		return errors.New("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}

	s.mu.Lock()
	s.client = openai.NewClientWithConfig(clientConfig)
	s.mu.Unlock()
	return nil
}

func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	return nil
}

func (s *OpenAILLMService) Reset() error {
	return nil
}

// RunCompletion streams the reply for llmContext into outChan.
func (s *OpenAILLMService) RunCompletion(ctx context.Context, llmContext core.LLMContext, outChan chan<- string) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return errors.New("OpenAI service not initialized")
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    convertMessages(llmContext.Messages),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Stream:      s.config.Streaming,
	}
	if s.config.Streaming {
		return s.runStreamingCompletion(ctx, client, req, outChan)
	}
	return s.runNonStreamingCompletion(ctx, client, req, outChan)
}

func (s *OpenAILLMService) runStreamingCompletion(
	ctx context.Context,
	client *openai.Client,
	req openai.ChatCompletionRequest,
	outChan chan<- string,
) error {
	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive completion: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		select {
		case outChan <- delta:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *OpenAILLMService) runNonStreamingCompletion(
	ctx context.Context,
	client *openai.Client,
	req openai.ChatCompletionRequest,
	outChan chan<- string,
) error {
	response, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("create completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return errors.New("completion returned no choices")
	}
	select {
	case outChan <- response.Choices[0].Message.Content:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Message,
		})
	}
	return out
}

func convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
