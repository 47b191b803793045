package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/device"
	"github.com/rijan-wa/gateway/internal/metrics"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/store"
)

const (
	defaultMaxRetries   = 5
	defaultStuckAfter   = 30 * time.Second
	defaultExpireAfter  = 24 * time.Hour
	defaultPollInterval = 3 * time.Second
	defaultBatchSize    = 20
)

// SenderConfig bounds the consumer path of spec.md §4.E.
type SenderConfig struct {
	PollInterval time.Duration
	BatchSize    int
	StuckAfter   time.Duration
	ExpireAfter  time.Duration
	MaxRetries   int
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = defaultStuckAfter
	}
	if c.ExpireAfter <= 0 {
		c.ExpireAfter = defaultExpireAfter
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Sender is the single cooperative worker of spec.md §4.E's consumer
// path: it polls ready rows, CASes each to sending, dispatches through
// (D), and resolves the outcome.
type Sender struct {
	store   *store.Store
	devices *device.Engine
	cfg     SenderConfig
	log     *slog.Logger
	metrics *metrics.Registry

	heartbeatMu   sync.Mutex
	lastHeartbeat time.Time
}

// SetMetrics wires the Prometheus registry for outbound-message
// counters. Safe to leave unset (nil) in tests.
func (s *Sender) SetMetrics(m *metrics.Registry) { s.metrics = m }

func NewSender(st *store.Store, devices *device.Engine, cfg SenderConfig, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{store: st, devices: devices, cfg: cfg.withDefaults(), log: log}
}

// Run blocks, sweeping on cfg.PollInterval until ctx is canceled.
func (s *Sender) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sender) sweep(ctx context.Context) {
	if n, err := s.store.ExpireStaleOutboxRows(s.cfg.ExpireAfter); err != nil {
		s.log.Error("outbox: expire stale rows", "error", err)
	} else if n > 0 {
		s.log.Info("outbox: expired stale rows", "count", n)
	}

	rows, err := s.store.ReadyOutboxRows(s.cfg.BatchSize, s.cfg.StuckAfter)
	s.markHeartbeat()
	if err != nil {
		s.log.Error("outbox: poll ready rows", "error", err)
		return
	}
	for _, row := range rows {
		s.deliver(ctx, row)
	}
}

// deliver implements spec.md §4.E steps 1-3 for one row.
func (s *Sender) deliver(ctx context.Context, row store.OutboxRow) {
	ok, err := s.store.CASOutboxStatus(row.ID, store.OutboxStatusPending, store.OutboxStatusSending)
	if err != nil {
		s.log.Error("outbox: cas to sending", "id", row.ID, "error", err)
		return
	}
	if !ok {
		return // lost the race to another pass, or status already moved on
	}

	res, err := s.devices.Send(ctx, row.DeviceID, protocolclient.SendRequest{
		JID:         row.JID,
		MessageType: row.MessageType,
		Payload:     row.Payload,
	})
	if err != nil {
		s.handleFailure(row, err)
		return
	}

	if err := s.store.MarkOutboxSent(row.ID, res.MessageID); err != nil {
		s.log.Error("outbox: mark sent", "id", row.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordMessageSent(row.MessageType)
	}
}

// handleFailure distinguishes a transient routing failure (device not
// connected on this instance: revert to pending, count against the
// retry ceiling) from a permanent upstream rejection (protocol client
// refused the send: terminal, no retry), per spec.md §4.E.
func (s *Sender) handleFailure(row store.OutboxRow, sendErr error) {
	apiErr := apierr.As(sendErr)

	if apiErr.Kind == apierr.KindUpstream {
		if err := s.store.MarkOutboxFailed(row.ID, apiErr.Error()); err != nil {
			s.log.Error("outbox: mark failed", "id", row.ID, "error", err)
		}
		return
	}

	if row.Retries+1 >= s.cfg.MaxRetries {
		if err := s.store.MarkOutboxFailed(row.ID, apiErr.Error()); err != nil {
			s.log.Error("outbox: mark failed (retries exhausted)", "id", row.ID, "error", err)
		}
		return
	}
	if err := s.store.MarkOutboxRetry(row.ID, apiErr.Error()); err != nil {
		s.log.Error("outbox: mark retry", "id", row.ID, "error", err)
	}
}

func (s *Sender) markHeartbeat() {
	s.heartbeatMu.Lock()
	s.lastHeartbeat = time.Now()
	s.heartbeatMu.Unlock()
}

// LastHeartbeat reports the last sweep time, for the /ready check.
func (s *Sender) LastHeartbeat() time.Time {
	s.heartbeatMu.Lock()
	defer s.heartbeatMu.Unlock()
	return s.lastHeartbeat
}
