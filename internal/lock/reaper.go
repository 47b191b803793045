package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rijan-wa/gateway/internal/store"
)

// Reaper periodically deletes device_locks rows whose expiry is far in
// the past, bounding table growth across many crashed instances — the
// supplemented feature of SPEC_FULL.md §3 implied by §4.H's
// expires_at index but not spelled out as its own operation.
type Reaper struct {
	store    *store.Store
	interval time.Duration
	// retain bounds how far past expiry a row survives before reaping;
	// kept well clear of any live refresh cadence so a momentarily slow
	// refresh can never be mistaken for an abandoned lock.
	retain time.Duration
	log    *slog.Logger

	heartbeatMu   sync.Mutex
	lastHeartbeat time.Time
}

// NewReaper constructs a Reaper. A zero interval defaults to one minute.
func NewReaper(st *store.Store, interval, retain time.Duration, log *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if retain <= 0 {
		retain = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{store: st, interval: interval, retain: retain, log: log}
}

// Run blocks, sweeping on Reaper's interval until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.store.ReapExpiredLocks(r.retain)
			r.markHeartbeat()
			if err != nil {
				r.log.Error("lock: reap sweep failed", "error", err)
				continue
			}
			if n > 0 {
				r.log.Info("lock: reaped expired locks", "count", n)
			}
		}
	}
}

func (r *Reaper) markHeartbeat() {
	r.heartbeatMu.Lock()
	r.lastHeartbeat = time.Now()
	r.heartbeatMu.Unlock()
}

// LastHeartbeat reports the last sweep time, for the /ready check.
func (r *Reaper) LastHeartbeat() time.Time {
	r.heartbeatMu.Lock()
	defer r.heartbeatMu.Unlock()
	return r.lastHeartbeat
}
