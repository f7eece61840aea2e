package livekit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livekit/protocol/livekit"
	"github.com/prometheus/client_golang/prometheus"

	"practicekit/core"
)

const (
	DefaultDrainTimeout   = 30 * time.Minute
	MaxReconnectDelay     = 30 * time.Second
	InitialReconnectDelay = 1 * time.Second
)

// State is the provider's connection to the LiveKit server.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	default:
		return "disconnected"
	}
}

// JobHandler runs one practice session in room. It must return once ctx is
// cancelled.
type JobHandler func(ctx context.Context, room *Room) error

type Config struct {
	URL          string
	APIKey       string
	APISecret    string
	AgentName    string
	Version      string
	MaxJobs      uint32
	DevMode      bool
	Logger       *core.Logger
	DrainTimeout time.Duration
	LogDir       string // Per-session .jsonl logs are written here when set.

	JobType     livekit.JobType
	HTTPPort    int
	Permissions *livekit.ParticipantPermission
	RoomOptions RoomOptions
	// Gatherer backs the /metrics endpoint of the health server.
	Gatherer prometheus.Gatherer
}

func DefaultConfig() Config {
	return Config{
		Version:      "1.0.0",
		JobType:      livekit.JobType_JT_ROOM,
		MaxJobs:      1,
		DrainTimeout: DefaultDrainTimeout,
		Logger:       core.GetLogger(),
		HTTPPort:     9999,
		Permissions: &livekit.ParticipantPermission{
			CanPublish:     true,
			CanSubscribe:   true,
			CanPublishData: true,
			Agent:          true,
		},
		RoomOptions: DefaultRoomOptions(),
		Gatherer:    prometheus.DefaultGatherer,
	}
}

// Provider registers as a LiveKit agent worker and runs a JobHandler for
// every room it is assigned.
type Provider struct {
	config Config
	logger *core.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	state    atomic.Int32
	attempts atomic.Int32
	connMu   sync.Mutex
	conn     *websocket.Conn
	workerID atomic.Value // string

	jobs       *jobTable
	jobHandler JobHandler
	stopOnce   sync.Once

	httpServer   *http.Server
	httpListener net.Listener
}

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("URL, APIKey, and APISecret are required")
	}
	if cfg.DevMode {
		cfg.MaxJobs = 100
		cfg.HTTPPort = 0
	}
	if cfg.MaxJobs == 0 {
		cfg.MaxJobs = 1
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		config: cfg,
		logger: cfg.Logger.With(map[string]interface{}{"agent": cfg.AgentName}),
		ctx:    ctx,
		cancel: cancel,
		jobs:   newJobTable(),
	}
	p.setState(StateDisconnected)
	return p, nil
}

func (p *Provider) RegisterJobHandler(handler JobHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	p.jobHandler = handler
	return nil
}

// Start serves the health endpoint and begins registering with the server.
// Registration is retried in the background.
func (p *Provider) Start() error {
	p.logger.Info("starting provider", "url", p.config.URL)
	if err := p.startHTTPServer(); err != nil {
		return err
	}
	p.wg.Add(1)
	go p.statusLoop()
	go p.connect()
	return nil
}

// Stop drains active jobs, waiting up to the drain timeout before cancelling
// the rest.
func (p *Provider) Stop() error {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping provider", "active_jobs", p.jobs.count())
		p.setState(StateDraining)

		drainCtx, cancel := context.WithTimeout(context.Background(), p.config.DrainTimeout)
		if !p.jobs.waitEmpty(drainCtx) {
			p.logger.Warn("drain timeout reached, cancelling remaining jobs", "active_jobs", p.jobs.count())
		}
		cancel()
		p.jobs.cancelAll()

		p.cancel()
		p.closeConn()
		p.stopHTTPServer()
		p.wg.Wait()
	})
	return nil
}

func (p *Provider) State() State {
	return State(p.state.Load())
}

func (p *Provider) setState(s State) {
	p.state.Store(int32(s))
}

func (p *Provider) WorkerID() string {
	id, _ := p.workerID.Load().(string)
	return id
}
