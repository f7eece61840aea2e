package livekit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"practicekit/core"
)

// Job is one room assignment accepted by the worker.
type Job struct {
	*livekit.Job
	Token     string
	URL       string
	StartedAt time.Time
	Cancel    context.CancelFunc
}

func (j *Job) roomName() string {
	return j.GetRoom().GetName()
}

// jobTable tracks running jobs and wakes drain waiters when it empties.
type jobTable struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	empty chan struct{} // closed while no job is running
}

func newJobTable() *jobTable {
	empty := make(chan struct{})
	close(empty)
	return &jobTable{jobs: make(map[string]*Job), empty: empty}
}

func (t *jobTable) add(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.jobs) == 0 {
		t.empty = make(chan struct{})
	}
	t.jobs[job.Id] = job
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[id]; !ok {
		return
	}
	delete(t.jobs, id)
	if len(t.jobs) == 0 {
		close(t.empty)
	}
}

func (t *jobTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

func (t *jobTable) hasRoom(roomName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, job := range t.jobs {
		if job.roomName() == roomName {
			return true
		}
	}
	return false
}

// cancel stops the job with the given id and reports whether it was running.
func (t *jobTable) cancel(id string) bool {
	t.mu.Lock()
	job, ok := t.jobs[id]
	t.mu.Unlock()
	if ok && job.Cancel != nil {
		job.Cancel()
	}
	return ok
}

func (t *jobTable) cancelAll() {
	t.mu.Lock()
	jobs := make([]*Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job)
	}
	t.mu.Unlock()
	for _, job := range jobs {
		if job.Cancel != nil {
			job.Cancel()
		}
	}
}

// waitEmpty blocks until no job is running or ctx is done. It reports
// whether the table drained.
func (t *jobTable) waitEmpty(ctx context.Context) bool {
	t.mu.Lock()
	empty := t.empty
	t.mu.Unlock()
	select {
	case <-empty:
		return true
	case <-ctx.Done():
		return t.count() == 0
	}
}

// available reports whether a new job for roomName can be accepted. A room
// is never served twice by the same worker.
func (p *Provider) available(roomName string) bool {
	if p.State() != StateConnected {
		return false
	}
	if uint32(p.jobs.count()) >= p.config.MaxJobs {
		return false
	}
	return !p.jobs.hasRoom(roomName)
}

func participantIdentity(agentName, jobID string) string {
	suffix := jobID
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	nonce := make([]byte, 4)
	_, _ = rand.Read(nonce)
	return "agent-" + agentName + "-" + suffix + "-" + hex.EncodeToString(nonce)
}

func (p *Provider) answerAvailability(job *livekit.Job) {
	if job == nil {
		return
	}
	label := p.config.AgentName
	if label == "" {
		label = "agent"
	}
	resp := &livekit.AvailabilityResponse{
		JobId:               job.Id,
		Available:           p.available(job.GetRoom().GetName()),
		ParticipantIdentity: participantIdentity(label, job.Id),
		ParticipantName:     label,
	}
	if err := p.send(&livekit.WorkerMessage{Message: &livekit.WorkerMessage_Availability{Availability: resp}}); err != nil {
		p.logger.Warn("failed to answer availability", "job", job.Id, "error", err)
	}
}

func (p *Provider) acceptAssignment(assign *livekit.JobAssignment) {
	if assign.GetJob() == nil || assign.Token == "" {
		return
	}
	serverURL := p.config.URL
	if assign.GetUrl() != "" {
		serverURL = assign.GetUrl()
	}

	ctx, cancel := context.WithCancel(p.ctx)
	job := &Job{
		Job:       assign.Job,
		Token:     assign.Token,
		URL:       serverURL,
		StartedAt: time.Now(),
		Cancel:    cancel,
	}
	p.jobs.add(job)

	p.wg.Add(1)
	go p.runJob(ctx, job)
	p.updateJobStatus(job.Id, livekit.JobStatus_JS_RUNNING, "")
}

func (p *Provider) runJob(ctx context.Context, job *Job) {
	defer p.wg.Done()
	defer func() {
		job.Cancel()
		p.jobs.remove(job.Id)
	}()

	if p.jobHandler == nil {
		p.logger.Error("no job handler registered")
		p.updateJobStatus(job.Id, livekit.JobStatus_JS_FAILED, "no handler")
		return
	}

	jobLogger, closeLog := p.sessionLogger(job)
	defer closeLog()
	jobLogger = jobLogger.With(map[string]interface{}{"job": job.Id, "room": job.roomName()})
	ctx = core.ContextWithSessionLogger(ctx, jobLogger)

	room := NewRoom(job.URL, job.Token, job.Room, p.config.RoomOptions, jobLogger)
	defer room.Close()

	if err := p.jobHandler(ctx, room); err != nil {
		jobLogger.Error("job failed", "error", err)
		p.updateJobStatus(job.Id, livekit.JobStatus_JS_FAILED, err.Error())
	} else {
		p.updateJobStatus(job.Id, livekit.JobStatus_JS_SUCCESS, "")
	}
	jobLogger.Info("job completed", "duration", time.Since(job.StartedAt).String())

	p.disconnectRoomParticipants(job.roomName())
}

// sessionLogger tees job logs into LogDir when configured. The returned
// func closes the session file.
func (p *Provider) sessionLogger(job *Job) (*core.Logger, func()) {
	if p.config.LogDir == "" {
		return p.logger, func() {}
	}
	writer, err := core.NewSessionLogWriter(p.config.LogDir, job.Id)
	if err != nil {
		p.logger.Warn("failed to create session log, using default", "error", err)
		return p.logger, func() {}
	}
	return core.NewSessionLogger(p.logger, writer, job.roomName()), func() { _ = writer.Close() }
}

// disconnectRoomParticipants removes the remaining people once the session
// is over so the room closes.
func (p *Provider) disconnectRoomParticipants(roomName string) {
	svc := lksdk.NewRoomServiceClient(p.config.URL, p.config.APIKey, p.config.APISecret)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := svc.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: roomName})
	if err != nil {
		p.logger.Warn("failed to list participants", "room", roomName, "error", err)
		return
	}
	for _, participant := range resp.Participants {
		if participant.Kind == livekit.ParticipantInfo_AGENT {
			continue
		}
		if _, err := svc.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
			Room:     roomName,
			Identity: participant.Identity,
		}); err != nil {
			p.logger.Warn("failed to remove participant", "room", roomName, "participant", participant.Identity, "error", err)
		}
	}
}
