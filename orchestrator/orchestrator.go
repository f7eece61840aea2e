package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"practicekit/core"
	"practicekit/metrics"
	"practicekit/practice"
)

// Room is the conversation room a session runs in.
type Room interface {
	Name() string
	// Metadata returns the room metadata, expected to be a JSON object with
	// optional "topic" and "difficulty" fields.
	Metadata() string
	Connect(ctx context.Context) error
	// Done is closed when the room connection is lost.
	Done() <-chan struct{}
}

// VoicePipeline turns room audio into finalized utterances and speaks the
// replies it is asked to generate.
type VoicePipeline interface {
	Start(ctx context.Context, persona practice.Persona) error
	// Utterances delivers every finalized user transcript and completed
	// assistant reply, in order.
	Utterances() <-chan practice.Utterance
	// GenerateReply produces one assistant turn. The instructions apply to
	// that turn only.
	GenerateReply(ctx context.Context, instructions string) error
	Close() error
}

var errRoomDisconnected = errors.New("room disconnected")

type Option func(*Orchestrator)

// WithClock replaces time.Now for policy evaluation.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithMetrics(collectors *metrics.Collectors) Option {
	return func(o *Orchestrator) { o.metrics = collectors }
}

// Orchestrator runs one practice session in one room.
type Orchestrator struct {
	room     Room
	pipeline VoicePipeline
	config   Config
	logger   *core.Logger
	metrics  *metrics.Collectors
	now      func() time.Time

	// mu serializes utterance recording against policy evaluation.
	mu      sync.Mutex
	replies sync.WaitGroup
}

func New(room Room, pipeline VoicePipeline, config Config, logger *core.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = core.GetLogger()
	}
	o := &Orchestrator{
		room:     room,
		pipeline: pipeline,
		config:   config,
		logger:   logger.With(map[string]interface{}{"room": room.Name()}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives the session until the room disconnects or ctx is cancelled.
// A lost room connection is the normal way for a session to end and is not
// reported as an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	sessionConfig, err := practice.ParseRoomMetadata(o.room.Metadata())
	if err != nil {
		o.logger.Warn("invalid room metadata, using defaults", "error", err)
	}
	o.logger = o.logger.With(map[string]interface{}{
		"topic":      sessionConfig.Topic,
		"difficulty": string(sessionConfig.Difficulty),
	})

	tracker := practice.NewTracker()
	persona := practice.NewConversationPracticeAssistant(sessionConfig, tracker)
	policy := practice.NewEngagementPolicy(o.config.Policy)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := o.pipeline.Start(ctx, persona); err != nil {
		return fmt.Errorf("start voice pipeline: %w", err)
	}
	defer func() {
		if err := o.pipeline.Close(); err != nil {
			o.logger.Warn("failed to close voice pipeline", "error", err)
		}
	}()

	if err := o.room.Connect(ctx); err != nil {
		return fmt.Errorf("connect to room: %w", err)
	}

	o.metrics.SessionStarted()
	defer o.metrics.SessionEnded()
	o.logger.Info("practice session started")

	o.requestReply(ctx, "greeting", persona.Greeting())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return o.intake(groupCtx, persona)
	})
	group.Go(func() error {
		return o.monitor(groupCtx, tracker, policy)
	})
	group.Go(func() error {
		select {
		case <-o.room.Done():
			return errRoomDisconnected
		case <-groupCtx.Done():
			return nil
		}
	})

	err = group.Wait()
	cancel()
	o.replies.Wait()

	o.logSummary(tracker)
	if errors.Is(err, errRoomDisconnected) {
		return nil
	}
	return err
}

func (o *Orchestrator) intake(ctx context.Context, persona practice.Persona) error {
	utterances := o.pipeline.Utterances()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-utterances:
			if !ok {
				return nil
			}
			o.mu.Lock()
			signals := persona.OnUtterance(u)
			o.mu.Unlock()

			o.metrics.ObserveUtterance(string(u.Speaker))
			o.logger.Debug("utterance recorded", "speaker", string(u.Speaker), "text", u.Text)
			for _, signal := range signals {
				o.metrics.ObserveFeedback(string(signal.Kind))
				o.logger.Info("feedback signal", "kind", string(signal.Kind), "suggestion", signal.Suggestion())
			}
		}
	}
}

func (o *Orchestrator) monitor(ctx context.Context, tracker *practice.Tracker, policy *practice.EngagementPolicy) error {
	ticker := time.NewTicker(policy.Config().TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.mu.Lock()
			last, ok := tracker.LastUserActivity()
			nudge, fire := policy.Evaluate(o.now(), last, ok)
			o.mu.Unlock()

			if fire {
				o.metrics.ObserveNudge()
				o.logger.Info("user idle, nudging", "idle_for", nudge.IdleFor.String())
				o.requestReply(ctx, "nudge", nudge.Instructions)
			}
		}
	}
}

// requestReply asks the pipeline for a reply without blocking the caller.
// Failures are logged and never retried.
func (o *Orchestrator) requestReply(ctx context.Context, kind string, instructions string) {
	o.replies.Add(1)
	go func() {
		defer o.replies.Done()

		replyCtx := ctx
		if o.config.ReplyTimeout > 0 {
			var cancel context.CancelFunc
			replyCtx, cancel = context.WithTimeout(ctx, o.config.ReplyTimeout)
			defer cancel()
		}

		started := time.Now()
		err := o.pipeline.GenerateReply(replyCtx, instructions)
		switch {
		case err == nil:
			o.metrics.ObserveReply(time.Since(started).Seconds(), "")
		case ctx.Err() != nil:
			// Session teardown; nothing is owed.
		case errors.Is(err, context.DeadlineExceeded):
			o.metrics.ObserveReply(0, "timeout")
			o.logger.Warn("reply generation timed out", "kind", kind)
		default:
			o.metrics.ObserveReply(0, "error")
			o.logger.Warn("reply generation failed", "kind", kind, "error", err)
		}
	}()
}

func (o *Orchestrator) logSummary(tracker *practice.Tracker) {
	m := tracker.Metrics()
	counts := tracker.FeedbackCounts()
	o.logger.Info("practice session ended",
		"utterances", len(tracker.History()),
		"responses", m.ResponseCount,
		"speaking_time", m.SpeakingTime.String(),
		"avg_response_time", m.AvgResponseTime.String(),
		"vocabulary_complexity", m.VocabularyComplexity,
		"user_engagement", m.UserEngagement,
		"conversation_flow", m.ConversationFlow,
		"filler_feedback", counts[practice.FeedbackFillerWords],
		"elaboration_feedback", counts[practice.FeedbackElaboration],
	)
}
