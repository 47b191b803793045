// Package device implements the Device Lifecycle Engine: the
// per-device connection supervisor that owns a long-lived socket to
// the chat protocol, survives restarts via persisted credentials,
// coordinates QR/pairing handshakes, and guarantees single-writer
// ownership across horizontally scaled instances (spec.md §4.D).
package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/authstore"
	"github.com/rijan-wa/gateway/internal/lock"
	"github.com/rijan-wa/gateway/internal/metrics"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

// Config bounds the engine's lock and reconnect policy, mirroring
// config.DeviceConfig without importing the config package directly
// (the engine is wired with already-resolved durations at construction).
type Config struct {
	LockTTL              time.Duration
	LockRefreshInterval  time.Duration
	LockAcquireTimeout   time.Duration
	ReconnectMaxBackoff  time.Duration
	ReconnectMaxRetries  int
	QRExpiry             time.Duration
}

// instance is the process-local registry entry for one running device,
// matching spec.md §4.D's "DeviceInstance { state, socket, started_at,
// lock_refresh_handle? }".
type instance struct {
	mu sync.Mutex

	deviceID string
	tenantID string

	client    protocolclient.Client
	startedAt time.Time

	cancelRefresh context.CancelFunc
	cancelReconnect context.CancelFunc

	lastQR       string
	lastQRAt     time.Time
	retries      int
}

// Engine is the process-local supervisor for every device this
// instance currently holds the lock for.
type Engine struct {
	store      *store.Store
	auth       *authstore.Store
	fanout     *webhooks.Pipeline
	locks      *lock.Manager
	factory    protocolclient.Factory
	instanceID string
	cfg        Config
	log        *slog.Logger
	metrics    *metrics.Registry

	mu        sync.Mutex
	instances map[string]*instance
}

// SetMetrics wires the Prometheus registry for inbound-message
// counters. Safe to leave unset (nil) in tests.
func (e *Engine) SetMetrics(m *metrics.Registry) { e.metrics = m }

// New constructs an Engine. factory is invoked once per device Start
// to obtain a fresh protocol client.
func New(st *store.Store, auth *authstore.Store, fo *webhooks.Pipeline, locks *lock.Manager, factory protocolclient.Factory, instanceID string, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:      st,
		auth:       auth,
		fanout:     fo,
		locks:      locks,
		factory:    factory,
		instanceID: instanceID,
		cfg:        cfg,
		log:        log,
		instances:  make(map[string]*instance),
	}
}

func (e *Engine) get(deviceID string) (*instance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[deviceID]
	return inst, ok
}

func (e *Engine) put(deviceID string, inst *instance) {
	e.mu.Lock()
	e.instances[deviceID] = inst
	e.mu.Unlock()
}

func (e *Engine) remove(deviceID string) {
	e.mu.Lock()
	delete(e.instances, deviceID)
	e.mu.Unlock()
}

// Health is the response shape for health(device_id).
type Health struct {
	IsConnected   bool
	Status        string
	JID           *string
	Phone         *string
	LastConnectAt *int64
	UptimeMS      *int64
}

// Health reports the current supervised state of a device, falling
// back to the persisted row when the device is not running locally
// (e.g. held by another instance).
func (e *Engine) Health(deviceID string) (Health, error) {
	row, err := e.store.FindDeviceByID(deviceID)
	if err != nil {
		return Health{}, err
	}

	h := Health{Status: row.Status, Phone: row.PhoneNumber, LastConnectAt: row.LastSeen}

	inst, ok := e.get(deviceID)
	if !ok {
		return h, nil
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	h.IsConnected = inst.client != nil && inst.client.IsConnected()
	if !inst.startedAt.IsZero() {
		uptime := time.Since(inst.startedAt).Milliseconds()
		h.UptimeMS = &uptime
	}

	if id, err := e.auth.Identity(row.TenantID, deviceID); err == nil && id != nil {
		jid := id.JID
		h.JID = &jid
	}
	return h, nil
}

func errDeviceOwnedElsewhere() error {
	return apierr.State("device is owned by another instance").WithSubKind("lock_held_elsewhere")
}

// errDeviceNotConnected marks a device that is not running (or not
// connected) on this instance, distinct from errDeviceOwnedElsewhere:
// the caller (the outbox sender) treats this as "retry later" rather
// than a permanent routing failure.
func errDeviceNotConnected() error {
	return apierr.State("device is not connected on this instance").WithSubKind("not_connected").WithRetryable(true)
}

// Send dispatches one outbound message through the device's live
// socket, per spec.md §4.E step 3. It is the only entry point
// internal/outbox uses to reach component D — the sender never touches
// a protocolclient.Client directly.
func (e *Engine) Send(ctx context.Context, deviceID string, req protocolclient.SendRequest) (protocolclient.SendResult, error) {
	inst, ok := e.get(deviceID)
	if !ok {
		return protocolclient.SendResult{}, errDeviceNotConnected()
	}

	inst.mu.Lock()
	client := inst.client
	inst.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return protocolclient.SendResult{}, errDeviceNotConnected()
	}

	res, err := client.Send(ctx, req)
	if err != nil {
		return protocolclient.SendResult{}, apierr.Upstream(err, "protocol client send failed")
	}
	return res, nil
}
