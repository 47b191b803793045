package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertDeviceSession writes the discovery/metadata cache row for a
// device's credential directory. The directory itself is owned by
// component C; this row is a cheap index, never the source of truth.
func (s *Store) UpsertDeviceSession(deviceID, tenantID, sessionDir, sessionKind string) error {
	_, err := s.DB.Exec(`INSERT INTO device_sessions (device_id, tenant_id, session_kind, session_dir, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET tenant_id = excluded.tenant_id, session_kind = excluded.session_kind,
			session_dir = excluded.session_dir, updated_at = excluded.updated_at`,
		deviceID, tenantID, sessionKind, sessionDir, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: upsert device session: %w", err)
	}
	return nil
}

// SetDeviceIdentity mirrors the paired jid/name extracted from the
// credential directory (component C.identity) into the session row.
func (s *Store) SetDeviceIdentity(deviceID, jid, name string) error {
	_, err := s.DB.Exec(`UPDATE device_sessions SET wa_jid = ?, wa_name = ?, updated_at = ? WHERE device_id = ?`,
		jid, name, time.Now().Unix(), deviceID)
	if err != nil {
		return fmt.Errorf("store: set device identity: %w", err)
	}
	return nil
}

// FindDeviceSession returns the session metadata row, if any.
func (s *Store) FindDeviceSession(deviceID string) (*DeviceSession, error) {
	var ds DeviceSession
	err := s.DB.Get(&ds, `SELECT * FROM device_sessions WHERE device_id = ?`, deviceID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find device session: %w", err)
	}
	return &ds, nil
}

// DeleteDeviceSession removes the metadata row (paired with
// authstore.Delete removing the directory itself) on logout.
func (s *Store) DeleteDeviceSession(deviceID string) error {
	_, err := s.DB.Exec(`DELETE FROM device_sessions WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("store: delete device session: %w", err)
	}
	return nil
}
