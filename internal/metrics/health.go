package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rijan-wa/gateway/internal/store"
)

// Heartbeater is satisfied by any background worker that reports its
// last sweep time — internal/lock.Reaper, internal/webhooks.Pipeline,
// and internal/outbox.Sender all implement it.
type Heartbeater interface {
	LastHeartbeat() time.Time
}

// Server wires the three observability endpoints of spec.md §4.I onto
// an *http.ServeMux.
type Server struct {
	registry *Registry
	store    *store.Store
	workers  map[string]Heartbeater
	// staleAfter bounds how old a worker's last heartbeat may be before
	// /ready reports it unhealthy.
	staleAfter time.Duration
}

// NewServer constructs a Server. workers maps a human-readable worker
// name (used in the /ready JSON body) to its Heartbeater.
func NewServer(registry *Registry, st *store.Store, workers map[string]Heartbeater, staleAfter time.Duration) *Server {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Server{registry: registry, store: st, workers: workers, staleAfter: staleAfter}
}

// RunRefresh periodically recomputes store-derived gauges until ctx is
// canceled.
func (s *Server) RunRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.registry.Refresh()
		}
	}
}

// Register mounts /health, /ready, and /metrics onto mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry.Gatherer(), promhttp.HandlerOpts{}))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readyStatus struct {
	Store   bool            `json:"store"`
	Workers map[string]bool `json:"workers"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := readyStatus{Workers: make(map[string]bool, len(s.workers))}

	status.Store = s.store.Ping() == nil

	ok := status.Store
	now := time.Now()
	for name, worker := range s.workers {
		healthy := now.Sub(worker.LastHeartbeat()) < s.staleAfter
		status.Workers[name] = healthy
		ok = ok && healthy
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
