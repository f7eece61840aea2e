package factories

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"practicekit/core"
	transporthandler "practicekit/handlers/transport"
	"practicekit/metrics"
	"practicekit/orchestrator"
	"practicekit/practice"
	"practicekit/transports/livekit"
)

// SessionRoom is a room that both hosts the session and carries its audio.
type SessionRoom interface {
	orchestrator.Room
	transporthandler.AudioRoom
}

// JobProvider hands rooms to a registered job handler.
type JobProvider interface {
	RegisterJobHandler(handler livekit.JobHandler) error
	Start() error
	Stop() error
}

// PipelineConfig configures a Pipeline's lifecycle behaviour.
type PipelineConfig struct {
	// Timeout bounds one session. Zero disables the bound.
	Timeout time.Duration
}

// Pipeline runs one practice session per job.
type Pipeline struct {
	settings   SettingsConfig
	config     PipelineConfig
	collectors *metrics.Collectors
	logger     *core.Logger
}

// NewPipeline expects settings whose credentials have already been injected.
func NewPipeline(settings SettingsConfig, config PipelineConfig, collectors *metrics.Collectors, logger *core.Logger) *Pipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		settings:   settings,
		config:     config,
		collectors: collectors,
		logger:     logger,
	}
}

// Run wires the handler chain to room and blocks until the session ends.
func (p *Pipeline) Run(ctx context.Context, room SessionRoom) error {
	base := core.SessionLoggerFromContext(ctx)
	logger := base.With(map[string]interface{}{"component": "pipeline"})

	select {
	case <-ctx.Done():
		logger.Info("context already cancelled, skipping job")
		return nil
	default:
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	session := p.settings.Session
	voice := NewVoicePipeline(func(persona practice.Persona, l *core.Logger) ([]core.IHandler, error) {
		return session.BuildHandlers(room, persona.Instructions(), l)
	}, base)

	err := orchestrator.New(room, voice, p.settings.OrchestratorConfig(), base, orchestrator.WithMetrics(p.collectors)).Run(ctx)
	if err == nil && ctx.Err() == context.DeadlineExceeded {
		logger.Warn("session timeout reached")
	}

	// ONNX tensors and Opus decoders live outside the Go heap, so the GC
	// does not see their pressure.
	runtime.GC()
	debug.FreeOSMemory()
	logger.Info("post-session GC completed")
	return err
}

// Serve registers the pipeline with provider, starts it, and blocks until
// ctx is cancelled. It then stops the provider.
func (p *Pipeline) Serve(ctx context.Context, provider JobProvider) error {
	logger := p.logger.With(map[string]interface{}{"component": "pipeline"})

	if err := provider.RegisterJobHandler(func(jobCtx context.Context, room *livekit.Room) error {
		return p.Run(jobCtx, room)
	}); err != nil {
		logger.Error("failed to register job handler", "error", err)
		return err
	}
	if err := provider.Start(); err != nil {
		logger.Error("failed to start provider", "error", err)
		return err
	}
	logger.Info("serving practice sessions")

	<-ctx.Done()
	logger.Info("shutting down provider")
	return provider.Stop()
}
