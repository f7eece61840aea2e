package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const defaultChannelBuffer = 128

var ErrRunnerNotStarted = errors.New("runner not started")

// Runner wires handlers into a chain and moves packets between them. Packets
// addressed to the top service are fed back into the first handler, packets
// leaving the last handler are handed to the registered observers.
type Runner struct {
	handlers  []IHandler
	logger    *Logger
	observers []func(packet *EventPacket)

	inputChans []chan *EventPacket
	topChan    chan *EventPacket
	tailChan   chan *EventPacket

	// Finished is closed once the runner has stopped and cleaned up.
	Finished chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.Mutex
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRunner(handlers []IHandler, logger *Logger) *Runner {
	if logger == nil {
		logger = GetLogger()
	}
	return &Runner{
		handlers: handlers,
		logger:   logger,
		Finished: make(chan struct{}),
	}
}

// Observe registers fn to receive every packet that leaves the chain. It must
// be called before Start.
func (r *Runner) Observe(fn func(packet *EventPacket)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("runner already started")
	}
	if len(r.handlers) == 0 {
		return errors.New("runner has no handlers")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.inputChans = make([]chan *EventPacket, len(r.handlers))
	for i := range r.inputChans {
		r.inputChans[i] = make(chan *EventPacket, defaultChannelBuffer)
	}
	r.topChan = make(chan *EventPacket, defaultChannelBuffer)
	r.tailChan = make(chan *EventPacket, defaultChannelBuffer)

	for i, handler := range r.handlers {
		next := r.tailChan
		if i+1 < len(r.handlers) {
			next = r.inputChans[i+1]
		}
		if err := handler.Initialize(r.inputChans[i], next, r.topChan, r.ctx); err != nil {
			r.cancel()
			r.cleanupHandlers(r.handlers[:i+1])
			return fmt.Errorf("initialize handler %s: %w", handler.Name(), err)
		}
	}
	for _, handler := range r.handlers {
		if err := handler.Start(); err != nil {
			r.cancel()
			r.cleanupHandlers(r.handlers)
			return fmt.Errorf("start handler %s: %w", handler.Name(), err)
		}
	}

	r.started = true
	r.wg.Add(2)
	go r.routeTop()
	go r.drainTail()
	go func() {
		<-r.ctx.Done()
		r.Stop()
	}()

	r.logger.Info("pipeline started", "handlers", len(r.handlers))
	return nil
}

// Inject pushes an event into the head of the chain.
func (r *Runner) Inject(event IEvent) error {
	r.mu.Lock()
	started, ctx := r.started, r.ctx
	r.mu.Unlock()
	if !started {
		return ErrRunnerNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	packet := NewEventPacket(event, EventRelayDestinationNextService, "runner")
	select {
	case r.inputChans[0] <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		started := r.started
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Unlock()

		if started {
			r.wg.Wait()
			r.cleanupHandlers(r.handlers)
		}
		r.logger.Info("pipeline stopped")
		close(r.Finished)
	})
}

func (r *Runner) routeTop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case packet := <-r.topChan:
			if critical, ok := packet.Event.(*CriticalErrorEvent); ok {
				r.logger.Error("critical pipeline error", "handler", critical.Handler, "error", critical.Error)
			}
			packet.Destination = EventRelayDestinationNextService
			select {
			case r.inputChans[0] <- packet:
			case <-r.ctx.Done():
				return
			}
		}
	}
}

func (r *Runner) drainTail() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case packet := <-r.tailChan:
			r.mu.Lock()
			observers := r.observers
			r.mu.Unlock()
			for _, observe := range observers {
				observe(packet)
			}
		}
	}
}

func (r *Runner) cleanupHandlers(handlers []IHandler) {
	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i].Cleanup(); err != nil {
			r.logger.Warn("handler cleanup failed", "handler", handlers[i].Name(), "error", err)
		}
	}
}
