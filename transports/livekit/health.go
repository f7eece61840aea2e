package livekit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthStatus struct {
	Status     string `json:"status"`
	State      string `json:"state"`
	WorkerID   string `json:"worker_id,omitempty"`
	ActiveJobs int    `json:"active_jobs"`
}

// healthHandler answers 200 while the worker is registered or draining and
// 503 otherwise.
func (p *Provider) healthHandler(w http.ResponseWriter, _ *http.Request) {
	state := p.State()
	body := healthStatus{
		Status:     "ok",
		State:      state.String(),
		WorkerID:   p.WorkerID(),
		ActiveJobs: p.jobs.count(),
	}
	code := http.StatusOK
	if state != StateConnected && state != StateDraining {
		body.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	data, err := sonic.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (p *Provider) startHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(p.config.Gatherer, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p.config.HTTPPort))
	if err != nil {
		return fmt.Errorf("failed to start HTTP listener: %w", err)
	}
	p.httpListener = ln
	p.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("health server stopped", "error", err)
		}
	}()
	return nil
}

func (p *Provider) stopHTTPServer() {
	if p.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.httpServer.Shutdown(ctx)
}

// Addr reports the health server's listen address.
func (p *Provider) Addr() string {
	if p.httpListener == nil {
		return ""
	}
	return p.httpListener.Addr().String()
}
