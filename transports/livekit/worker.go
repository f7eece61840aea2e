package livekit

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"google.golang.org/protobuf/proto"
)

const statusInterval = 2 * time.Second

var errNotConnected = errors.New("worker not connected")

// agentURL maps the server URL onto its agent websocket endpoint.
func agentURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/agent"
	return u.String(), nil
}

func (p *Provider) workerToken() (string, error) {
	identity := p.config.AgentName
	if identity == "" {
		identity = "practice-agent-worker"
	}
	return auth.NewAccessToken(p.config.APIKey, p.config.APISecret).
		SetIdentity(identity).
		SetValidFor(24 * time.Hour).
		SetVideoGrant(&auth.VideoGrant{Agent: true}).
		ToJWT()
}

// connect dials the agent endpoint and registers the worker. Failures are
// retried with backoff until the provider stops.
func (p *Provider) connect() {
	if p.ctx.Err() != nil {
		return
	}
	p.closeConn()
	p.setState(StateConnecting)

	if err := p.dialAndRegister(); err != nil {
		p.logger.Error("worker registration failed", "error", err)
		p.closeConn()
		p.setState(StateDisconnected)
		p.scheduleReconnect()
		return
	}
	p.attempts.Store(0)
	p.setState(StateConnected)
	p.logger.Info("connected to LiveKit server")
}

func (p *Provider) dialAndRegister() error {
	wsURL, err := agentURL(p.config.URL)
	if err != nil {
		return err
	}
	token, err := p.workerToken()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.DialContext(p.ctx, wsURL, header)
	if err != nil {
		return err
	}
	p.connMu.Lock()
	p.conn = conn
	p.connMu.Unlock()

	err = p.send(&livekit.WorkerMessage{Message: &livekit.WorkerMessage_Register{
		Register: &livekit.RegisterWorkerRequest{
			Type:               p.config.JobType,
			AgentName:          p.config.AgentName,
			Version:            p.config.Version,
			AllowedPermissions: p.config.Permissions,
		},
	}})
	if err != nil {
		return err
	}

	p.wg.Add(1)
	go p.readLoop(conn)
	return nil
}

// reconnectDelay doubles per failed attempt up to MaxReconnectDelay.
func reconnectDelay(attempt int) time.Duration {
	delay := InitialReconnectDelay
	for i := 1; i < attempt && delay < MaxReconnectDelay; i++ {
		delay *= 2
	}
	return min(delay, MaxReconnectDelay)
}

func (p *Provider) scheduleReconnect() {
	if p.ctx.Err() != nil {
		return
	}
	attempt := int(p.attempts.Add(1))
	delay := reconnectDelay(attempt)
	p.logger.Warnf("reconnect attempt %d in %s", attempt, delay)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-p.ctx.Done():
		case <-timer.C:
			p.connect()
		}
	}()
}

func (p *Provider) closeConn() {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Provider) send(msg *livekit.WorkerMessage) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.conn == nil {
		return errNotConnected
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (p *Provider) readLoop(conn *websocket.Conn) {
	defer p.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if p.ctx.Err() == nil && p.State() != StateDraining {
				p.logger.Warn("worker connection lost", "error", err)
				p.setState(StateDisconnected)
				p.scheduleReconnect()
			}
			return
		}

		msg := &livekit.ServerMessage{}
		if err := proto.Unmarshal(data, msg); err != nil {
			p.logger.Error("failed to unmarshal server message", "error", err)
			continue
		}
		p.handleServerMessage(msg)
	}
}

func (p *Provider) handleServerMessage(msg *livekit.ServerMessage) {
	switch m := msg.Message.(type) {
	case *livekit.ServerMessage_Register:
		p.workerID.Store(m.Register.WorkerId)
		p.logger.Info("registered", "worker_id", m.Register.WorkerId)
	case *livekit.ServerMessage_Availability:
		p.answerAvailability(m.Availability.Job)
	case *livekit.ServerMessage_Assignment:
		p.acceptAssignment(m.Assignment)
	case *livekit.ServerMessage_Termination:
		if p.jobs.cancel(m.Termination.JobId) {
			p.logger.Info("job terminated by server", "job", m.Termination.JobId)
		}
	}
}

// workerStatus reports WS_FULL once MaxJobs sessions are running.
func (p *Provider) workerStatus() *livekit.UpdateWorkerStatus {
	count := uint32(p.jobs.count())
	status := livekit.WorkerStatus_WS_AVAILABLE
	if count >= p.config.MaxJobs {
		status = livekit.WorkerStatus_WS_FULL
	}
	return &livekit.UpdateWorkerStatus{Status: status.Enum(), JobCount: count}
}

func (p *Provider) statusLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if p.State() != StateConnected {
				continue
			}
			if err := p.send(&livekit.WorkerMessage{Message: &livekit.WorkerMessage_UpdateWorker{UpdateWorker: p.workerStatus()}}); err != nil {
				p.logger.Debug("failed to report worker status", "error", err)
			}
		}
	}
}

func (p *Provider) updateJobStatus(jobID string, status livekit.JobStatus, errMsg string) {
	msg := &livekit.WorkerMessage{Message: &livekit.WorkerMessage_UpdateJob{
		UpdateJob: &livekit.UpdateJobStatus{JobId: jobID, Status: status, Error: errMsg},
	}}
	if err := p.send(msg); err != nil {
		p.logger.Debug("failed to update job status", "job", jobID, "error", err)
	}
}
