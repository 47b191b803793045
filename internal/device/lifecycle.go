package device

import (
	"context"
	"time"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

// Start acquires the device's distributed lock, opens a socket via the
// protocol client, and registers event hooks, per spec.md §4.D. On any
// failure after lock acquisition it releases the lock before returning.
func (e *Engine) Start(ctx context.Context, deviceID, tenantID string) error {
	if _, ok := e.get(deviceID); ok {
		return nil // already running locally; idempotent per spec's start semantics
	}

	acquireCtx, cancel := context.WithTimeout(ctx, e.cfg.LockAcquireTimeout)
	defer cancel()

	acquired, err := e.tryAcquire(acquireCtx, deviceID)
	if err != nil {
		return apierr.Internal(err, "acquire device lock")
	}
	if !acquired {
		return errDeviceOwnedElsewhere()
	}

	if err := e.store.UpdateDeviceStatus(deviceID, store.DeviceStatusConnecting); err != nil {
		e.locks.Release(deviceID)
		return apierr.Internal(err, "update device status")
	}

	sessionDir, err := e.auth.Resolve(tenantID, deviceID)
	if err != nil {
		e.locks.Release(deviceID)
		return apierr.Internal(err, "resolve credential directory")
	}
	_ = e.store.UpsertDeviceSession(deviceID, tenantID, sessionDir, "active")

	client := e.factory()
	inst := &instance{
		deviceID:  deviceID,
		tenantID:  tenantID,
		client:    client,
		startedAt: time.Now(),
	}

	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	inst.cancelRefresh = cancelRefresh

	hooks := e.buildHooks(inst)
	if err := client.Connect(ctx, sessionDir, hooks); err != nil {
		cancelRefresh()
		e.locks.Release(deviceID)
		e.store.UpdateDeviceStatus(deviceID, store.DeviceStatusFailed)
		return apierr.Upstream(err, "protocol client connect failed")
	}

	e.put(deviceID, inst)
	go e.refreshLoop(refreshCtx, deviceID)

	identity, err := e.auth.Identity(tenantID, deviceID)
	if err != nil {
		e.log.Warn("device: read identity after connect", "device_id", deviceID, "error", err)
	}
	if identity == nil {
		e.store.UpdateDeviceStatus(deviceID, store.DeviceStatusNeedsPairing)
	}

	return nil
}

func (e *Engine) tryAcquire(ctx context.Context, deviceID string) (bool, error) {
	deadline, hasDeadline := ctx.Deadline()
	for {
		ok, err := e.locks.Acquire(deviceID, e.cfg.LockTTL)
		if err != nil || ok {
			return ok, err
		}
		if hasDeadline && time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (e *Engine) refreshLoop(ctx context.Context, deviceID string) {
	ticker := time.NewTicker(e.cfg.LockRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := e.locks.Refresh(deviceID, e.cfg.LockTTL)
			if err != nil {
				e.log.Error("device: refresh lock", "device_id", deviceID, "error", err)
				continue
			}
			if !ok {
				e.log.Warn("device: lost lock ownership, stopping", "device_id", deviceID)
				e.Stop(context.Background(), deviceID)
				return
			}
		}
	}
}

// Stop cancels the refresh task, closes the socket, marks the device
// disconnected, and releases the lock.
func (e *Engine) Stop(ctx context.Context, deviceID string) error {
	inst, ok := e.get(deviceID)
	if !ok {
		return nil
	}
	e.remove(deviceID)

	inst.mu.Lock()
	if inst.cancelRefresh != nil {
		inst.cancelRefresh()
	}
	if inst.cancelReconnect != nil {
		inst.cancelReconnect()
	}
	client := inst.client
	inst.mu.Unlock()

	if client != nil {
		if err := client.Disconnect(ctx); err != nil {
			e.log.Warn("device: disconnect error", "device_id", deviceID, "error", err)
		}
	}

	if err := e.store.UpdateDeviceStatus(deviceID, store.DeviceStatusDisconnected); err != nil {
		e.log.Error("device: mark disconnected", "device_id", deviceID, "error", err)
	}
	if err := e.locks.Release(deviceID); err != nil {
		e.log.Error("device: release lock", "device_id", deviceID, "error", err)
	}
	return nil
}

// StopAll stops every device this instance currently supervises, best
// effort, used during process shutdown so each socket is closed and its
// lock released rather than left to expire on the reaper's schedule.
func (e *Engine) StopAll(ctx context.Context) {
	e.mu.Lock()
	deviceIDs := make([]string, 0, len(e.instances))
	for id := range e.instances {
		deviceIDs = append(deviceIDs, id)
	}
	e.mu.Unlock()

	for _, id := range deviceIDs {
		if err := e.Stop(ctx, id); err != nil {
			e.log.Error("device: stop_all failed for device", "device_id", id, "error", err)
		}
	}
}

// Logout stops the device then deletes its credential directory and
// session metadata row, forcing needs_pairing on the next start.
func (e *Engine) Logout(ctx context.Context, deviceID, tenantID string) error {
	if err := e.Stop(ctx, deviceID); err != nil {
		return err
	}
	if err := e.auth.Delete(tenantID, deviceID); err != nil {
		return apierr.Internal(err, "delete credential directory")
	}
	if err := e.store.DeleteDeviceSession(deviceID); err != nil {
		e.log.Warn("device: delete session row", "device_id", deviceID, "error", err)
	}
	return e.store.UpdateDeviceStatus(deviceID, store.DeviceStatusNeedsPairing)
}

// QRResult is returned by RequestQR.
type QRResult struct {
	QRImage   string
	ExpiresAt int64
}

// RequestQR returns the most recent QR emitted by the device's socket.
func (e *Engine) RequestQR(ctx context.Context, deviceID string) (QRResult, error) {
	inst, ok := e.get(deviceID)
	if !ok {
		return QRResult{}, apierr.State("device is not running on this instance").WithSubKind("not_connected")
	}

	if err := inst.client.RequestQR(ctx); err != nil {
		return QRResult{}, apierr.Upstream(err, "request qr")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		inst.mu.Lock()
		qr, at := inst.lastQR, inst.lastQRAt
		inst.mu.Unlock()
		if qr != "" && time.Since(at) < e.cfg.QRExpiry {
			return QRResult{QRImage: qr, ExpiresAt: at.Add(e.cfg.QRExpiry).Unix()}, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return QRResult{}, apierr.Upstream(nil, "timed out waiting for qr")
}

// PairingCodeResult is returned by RequestPairingCode.
type PairingCodeResult struct {
	Code      string
	ExpiresAt int64
}

// RequestPairingCode triggers the alternative phone-number pairing flow.
func (e *Engine) RequestPairingCode(ctx context.Context, deviceID, phone string) (PairingCodeResult, error) {
	inst, ok := e.get(deviceID)
	if !ok {
		return PairingCodeResult{}, apierr.State("device is not running on this instance").WithSubKind("not_connected")
	}
	code, err := inst.client.RequestPairingCode(ctx, phone)
	if err != nil {
		return PairingCodeResult{}, apierr.Upstream(err, "request pairing code")
	}
	return PairingCodeResult{Code: code, ExpiresAt: time.Now().Add(e.cfg.QRExpiry).Unix()}, nil
}

// RecoverOnBoot scans the credential store, cross-references device
// ownership, and re-starts every device whose credentials exist and
// whose tenant is not suspended. Per-device failures are logged and do
// not block the rest of the batch.
func (e *Engine) RecoverOnBoot(ctx context.Context, tenantLookup func(tenantID string) (*store.Tenant, error)) {
	discovered, err := e.auth.Scan()
	if err != nil {
		e.log.Error("device: recover_on_boot scan", "error", err)
		return
	}

	grouped := make(map[string][]store.Device)
	for _, d := range discovered {
		if d.TenantID == "" {
			e.log.Warn("device: skipping legacy session with no tenant, needs manual migration", "device_id", d.DeviceID)
			continue
		}
		row, err := e.store.FindDeviceByID(d.DeviceID)
		if err != nil {
			e.log.Warn("device: recover_on_boot unknown device", "device_id", d.DeviceID, "error", err)
			continue
		}
		grouped[d.TenantID] = append(grouped[d.TenantID], *row)
	}

	for tenantID, devices := range grouped {
		go func(tenantID string, devices []store.Device) {
			tenant, err := tenantLookup(tenantID)
			if err != nil || tenant.Status == store.TenantStatusSuspended || tenant.Status == store.TenantStatusDeleted {
				return
			}
			for _, d := range devices {
				if err := e.Start(ctx, d.ID, tenantID); err != nil {
					e.log.Error("device: recover_on_boot start failed", "device_id", d.ID, "tenant_id", tenantID, "error", err)
				}
			}
		}(tenantID, devices)
	}
}
