// Package server exposes the latest health snapshot over HTTP while the
// monitor runs in watch mode: a liveness endpoint, a JSON status
// endpoint, and a websocket that pushes every new snapshot.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/monitor"
	"vigil/report"
)

// Server wraps HTTP serving of the monitor's latest report.
type Server struct {
	httpServer *http.Server
	reporter   *report.Reporter
	hub        *hub

	mu     sync.RWMutex
	latest []byte // rendered JSON of the latest snapshot
	ready  bool
	failed bool
}

// New creates a configured HTTP server.
func New(addr string, reporter *report.Reporter) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		reporter:   reporter,
		hub:        newHub(),
	}
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/status/ws", s.handleStatusWS)
	// Serves the default registry; the prometheus metrics exporter
	// registers there when configured.
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Publish records a new report and pushes it to websocket subscribers.
func (s *Server) Publish(rep monitor.Report) {
	payload, err := s.reporter.RenderJSON(rep.Snapshot)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.latest = payload
	s.ready = true
	s.failed = rep.Snapshot.Overall.String() == "fail"
	s.mu.Unlock()

	s.hub.broadcast(payload)
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.httpServer.Shutdown(ctx)
}

// handleLiveness reports that the watch process itself is up; it says
// nothing about the monitored services.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStatus serves the latest snapshot. The HTTP status mirrors the
// overall state so load balancers can consume the endpoint directly.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	payload, ready, failed := s.latest, s.ready, s.failed
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case !ready:
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"overall":"unknown","detail":"no snapshot yet"}`))
	case failed:
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write(payload)
	default:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.RLock()
	payload, ready := s.latest, s.ready
	s.mu.RUnlock()

	s.hub.serve(conn, payload, ready)
}
