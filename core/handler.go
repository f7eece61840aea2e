package core

import (
	"context"
	"errors"
	"sync"
)

type IService interface {
	Initialize(ctx context.Context) error
	Cleanup() error
	Reset() error
}

type IHandler interface {
	Initialize(
		inputChan <-chan *EventPacket,
		outputNextChan chan<- *EventPacket,
		outputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error // Initializes the handler and its service.
	Start() error // Starts the handler's main logic. This is where the handler begins processing events.
	HandleEvent(packet *EventPacket) error

	Cleanup() error // Cleans up resources used by the handler.
	Reset() error   // Resets the handler to its initial state.
	Name() string
}

// BaseHandler carries the plumbing shared by every pipeline stage: channel
// wiring, service failover and packet relaying.
type BaseHandler struct {
	Service               IService
	BackupServices        []IService
	Ctx                   context.Context
	InputChan             <-chan *EventPacket
	outputNextChan        chan<- *EventPacket
	outputTopChan         chan<- *EventPacket
	FatalServiceErrorChan chan error
	Logger                *Logger

	name string
	mu   sync.RWMutex
}

func NewBaseHandler(name string, service IService, backupServices []IService, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler{
		Service:        service,
		BackupServices: backupServices,
		Logger:         logger.With(map[string]interface{}{"handler": name}),
		name:           name,
	}
}

func (h *BaseHandler) Name() string {
	return h.name
}

func (h *BaseHandler) Initialize(
	inputChan <-chan *EventPacket,
	outputNextChan chan<- *EventPacket,
	outputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = inputChan
	h.outputNextChan = outputNextChan
	h.outputTopChan = outputTopChan
	h.FatalServiceErrorChan = make(chan error, 1)
	h.Ctx = ctx
	go h.fatalErrorHandlerLoop()

	if svc := h.CurrentService(); svc != nil {
		return svc.Initialize(ctx)
	}
	return nil
}

// CurrentService returns the active service, which may change after failover.
func (h *BaseHandler) CurrentService() IService {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Service
}

func (h *BaseHandler) Cleanup() error {
	if svc := h.CurrentService(); svc != nil {
		return svc.Cleanup()
	}
	return nil
}

func (h *BaseHandler) Reset() error {
	if svc := h.CurrentService(); svc != nil {
		return svc.Reset()
	}
	return nil
}

func (h *BaseHandler) SwitchToBackupService() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.BackupServices) == 0 {
		return errors.New("no backup services available")
	}
	next := h.BackupServices[0]
	if err := next.Initialize(h.Ctx); err != nil {
		return err
	}
	if h.Service != nil {
		if err := h.Service.Cleanup(); err != nil {
			h.Logger.Warn("failed to clean up replaced service", "error", err)
		}
	}
	h.Service = next
	h.BackupServices = h.BackupServices[1:]
	return nil
}

// RunEventLoop feeds every inbound packet to handle until the input closes or
// the handler context is cancelled. Handler errors are logged, not fatal.
func (h *BaseHandler) RunEventLoop(handle func(packet *EventPacket) error) {
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet, ok := <-h.InputChan:
			if !ok {
				return
			}
			if err := handle(packet); err != nil {
				h.Logger.Error("failed to handle event", "event", packet.Event.GetId(), "error", err)
			}
		}
	}
}

// SendPacket blocks until the packet is accepted or the handler is shut down.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	out := h.outputNextChan
	if packet.Destination == EventRelayDestinationTopService {
		out = h.outputTopChan
	}
	if out == nil {
		return
	}
	select {
	case out <- packet:
	case <-h.Ctx.Done():
	}
}

// Relay sends a new event to the next handler in the chain.
func (h *BaseHandler) Relay(event IEvent) {
	h.SendPacket(NewEventPacket(event, EventRelayDestinationNextService, h.name))
}

// Broadcast sends a new event to the head of the chain so every handler sees it.
func (h *BaseHandler) Broadcast(event IEvent) {
	h.SendPacket(NewEventPacket(event, EventRelayDestinationTopService, h.name))
}

// HandleError reports a service failure. Only the first pending error is kept.
func (h *BaseHandler) HandleError(err error) {
	select {
	case h.FatalServiceErrorChan <- err:
	default:
	}
}

func (h *BaseHandler) fatalErrorHandlerLoop() {
	for {
		select {
		case err := <-h.FatalServiceErrorChan:
			h.Logger.Error("service failure", "error", err)
			if switchErr := h.SwitchToBackupService(); switchErr != nil {
				h.Logger.Error("failed to switch to backup service", "error", switchErr)
				h.Broadcast(&CriticalErrorEvent{Handler: h.name, Error: err.Error()})
				continue
			}
			h.Logger.Warn("switched to backup service")
			h.Broadcast(&WarningEvent{Handler: h.name, Error: err.Error()})
		case <-h.Ctx.Done():
			return
		}
	}
}
