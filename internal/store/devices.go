package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateDevice inserts a new device owned by tenantID.
func (s *Store) CreateDevice(id, tenantID, label string) (*Device, error) {
	d := &Device{ID: id, TenantID: tenantID, Label: label, Status: DeviceStatusDisconnected, CreatedAt: time.Now().Unix()}
	_, err := s.DB.NamedExec(`INSERT INTO devices (id, tenant_id, label, status, created_at)
		VALUES (:id, :tenant_id, :label, :status, :created_at)`, d)
	if err != nil {
		return nil, fmt.Errorf("store: create device: %w", err)
	}
	return d, nil
}

// FindDeviceByTenant is the ONLY device lookup exposed to tenant-facing
// handlers: it is always scoped to a tenant id, per spec.md §4.B ("the
// Store MUST NOT expose an unscoped find-by-device-id API to
// tenant-facing handlers"). A device owned by a different tenant is
// indistinguishable from a missing one — both return ErrNotFound.
func (s *Store) FindDeviceByTenant(tenantID, deviceID string) (*Device, error) {
	var d Device
	err := s.DB.Get(&d, `SELECT * FROM devices WHERE id = ? AND tenant_id = ?`, deviceID, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find device: %w", err)
	}
	return &d, nil
}

// FindDeviceByID is an internal, unscoped lookup for use ONLY by
// process-internal components that already hold the device id from a
// trusted source (the lifecycle engine's own registry, the sender
// worker, recovery on boot) — never from an HTTP handler taking a URL
// parameter directly.
func (s *Store) FindDeviceByID(deviceID string) (*Device, error) {
	var d Device
	err := s.DB.Get(&d, `SELECT * FROM devices WHERE id = ?`, deviceID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find device by id: %w", err)
	}
	return &d, nil
}

// ListDevicesByTenant returns every device owned by tenantID.
func (s *Store) ListDevicesByTenant(tenantID string) ([]Device, error) {
	var ds []Device
	err := s.DB.Select(&ds, `SELECT * FROM devices WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	return ds, nil
}

// ListAllDevices returns every device regardless of tenant. Nothing in
// this module calls it; RecoverOnBoot looks up each scanned device with
// FindDeviceByID instead.
func (s *Store) ListAllDevices() ([]Device, error) {
	var ds []Device
	err := s.DB.Select(&ds, `SELECT * FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("store: list all devices: %w", err)
	}
	return ds, nil
}

// UpdateDeviceStatus transitions a device's status and, when
// transitioning to connected, stamps last_seen.
func (s *Store) UpdateDeviceStatus(deviceID, status string) error {
	now := time.Now().Unix()
	res, err := s.DB.Exec(`UPDATE devices SET status = ?, last_seen = CASE WHEN ? = ? THEN ? ELSE last_seen END WHERE id = ?`,
		status, status, DeviceStatusConnected, now, deviceID)
	if err != nil {
		return fmt.Errorf("store: update device status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDevicePhoneNumber records the paired phone number once known.
func (s *Store) SetDevicePhoneNumber(deviceID, phoneNumber string) error {
	_, err := s.DB.Exec(`UPDATE devices SET phone_number = ? WHERE id = ?`, phoneNumber, deviceID)
	if err != nil {
		return fmt.Errorf("store: set device phone number: %w", err)
	}
	return nil
}
