package factories

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"practicekit/core"
	"practicekit/events/llm"
	"practicekit/events/stt"
	"practicekit/practice"
)

const utteranceBuffer = 64

var (
	ErrPipelineClosed     = errors.New("voice pipeline closed")
	ErrPipelineNotStarted = errors.New("voice pipeline not started")
)

// HandlerBuilder returns the handler chain for a session bound to persona.
type HandlerBuilder func(persona practice.Persona, logger *core.Logger) ([]core.IHandler, error)

// ReplyFailedError carries the reason a reply request could not be completed.
type ReplyFailedError struct {
	RequestID string
	Reason    string
}

func (e *ReplyFailedError) Error() string {
	return "reply " + e.RequestID + " failed: " + e.Reason
}

// VoicePipeline runs the handler chain of one session and exposes it as a
// stream of utterances plus on-demand replies.
type VoicePipeline struct {
	build  HandlerBuilder
	logger *core.Logger
	now    func() time.Time

	mu         sync.Mutex
	runner     *core.Runner
	waiters    map[string]chan error
	utterances chan practice.Utterance
	done       chan struct{}
	closeOnce  sync.Once
}

func NewVoicePipeline(build HandlerBuilder, logger *core.Logger) *VoicePipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &VoicePipeline{
		build:      build,
		logger:     logger.With(map[string]interface{}{"component": "voice_pipeline"}),
		now:        time.Now,
		waiters:    make(map[string]chan error),
		utterances: make(chan practice.Utterance, utteranceBuffer),
		done:       make(chan struct{}),
	}
}

func (p *VoicePipeline) Start(ctx context.Context, persona practice.Persona) error {
	handlers, err := p.build(persona, p.logger)
	if err != nil {
		return err
	}
	runner := core.NewRunner(handlers, p.logger)
	runner.Observe(p.observe)
	if err := runner.Start(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.runner = runner
	p.mu.Unlock()
	return nil
}

func (p *VoicePipeline) Utterances() <-chan practice.Utterance {
	return p.utterances
}

// GenerateReply injects a reply request and waits until the language model
// has completed or abandoned it.
func (p *VoicePipeline) GenerateReply(ctx context.Context, instructions string) error {
	p.mu.Lock()
	runner := p.runner
	p.mu.Unlock()
	if runner == nil {
		return ErrPipelineNotStarted
	}

	requestID := uuid.NewString()
	result := make(chan error, 1)
	p.mu.Lock()
	p.waiters[requestID] = result
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.waiters, requestID)
		p.mu.Unlock()
	}()

	if err := runner.Inject(&llm.LLMGenerateReplyEvent{RequestID: requestID, Instructions: instructions}); err != nil {
		select {
		case <-p.done:
			return ErrPipelineClosed
		default:
		}
		if errors.Is(err, core.ErrRunnerNotStarted) {
			return ErrPipelineNotStarted
		}
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-runner.Finished:
		return ErrPipelineClosed
	case <-p.done:
		return ErrPipelineClosed
	}
}

func (p *VoicePipeline) Close() error {
	p.mu.Lock()
	runner := p.runner
	p.mu.Unlock()
	// Release a blocked observer before waiting for the runner to drain.
	p.closeOnce.Do(func() { close(p.done) })
	if runner != nil {
		runner.Stop()
	}
	return nil
}

func (p *VoicePipeline) observe(packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *stt.STTFinalOutputEvent:
		timestamp := event.Timestamp
		if timestamp.IsZero() {
			timestamp = p.now()
		}
		p.emit(practice.Utterance{Speaker: practice.SpeakerUser, Text: event.Text, Timestamp: timestamp})
	case *llm.LLMResponseCompletedEvent:
		if event.FullText != "" {
			p.emit(practice.Utterance{Speaker: practice.SpeakerAssistant, Text: event.FullText, Timestamp: p.now()})
		}
		p.resolve(event.RequestID, nil)
	case *llm.LLMResponseFailedEvent:
		p.resolve(event.RequestID, &ReplyFailedError{RequestID: event.RequestID, Reason: event.Error})
	case *core.CriticalErrorEvent:
		p.logger.Error("pipeline reported critical error", "handler", event.Handler, "error", event.Error)
	}
}

func (p *VoicePipeline) emit(u practice.Utterance) {
	select {
	case p.utterances <- u:
	case <-p.done:
	}
}

func (p *VoicePipeline) resolve(requestID string, err error) {
	p.mu.Lock()
	result, ok := p.waiters[requestID]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case result <- err:
	default:
	}
}
