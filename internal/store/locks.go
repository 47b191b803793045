package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AcquireLock implements the distributed lock algorithm of spec.md
// §4.H: if no row exists or the existing row has expired, claim it for
// instanceID; if the existing row is already ours, re-entrantly extend
// it; otherwise report not-acquired. The whole check-and-write runs in
// one transaction so concurrent callers never both observe "claimable".
func (s *Store) AcquireLock(deviceID, instanceID string, ttl time.Duration) (bool, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return false, fmt.Errorf("store: acquire lock: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	expiresAt := time.Now().Add(ttl).Unix()

	var existing DeviceLock
	err = tx.Get(&existing, `SELECT * FROM device_locks WHERE device_id = ?`, deviceID)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO device_locks (device_id, instance_id, acquired_at, expires_at) VALUES (?, ?, ?, ?)`,
			deviceID, instanceID, now, expiresAt); err != nil {
			return false, fmt.Errorf("store: acquire lock insert: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("store: acquire lock: %w", err)
	case existing.ExpiresAt <= now:
		if _, err := tx.Exec(`UPDATE device_locks SET instance_id = ?, acquired_at = ?, expires_at = ? WHERE device_id = ?`,
			instanceID, now, expiresAt, deviceID); err != nil {
			return false, fmt.Errorf("store: acquire lock overwrite expired: %w", err)
		}
	case existing.InstanceID == instanceID:
		if _, err := tx.Exec(`UPDATE device_locks SET expires_at = ? WHERE device_id = ?`, expiresAt, deviceID); err != nil {
			return false, fmt.Errorf("store: acquire lock reentrant extend: %w", err)
		}
	default:
		return false, tx.Commit()
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: acquire lock commit: %w", err)
	}
	return true, nil
}

// RefreshLock is the periodic best-effort extend-if-mine used by the
// lock-refresh task. Returns false if the lock is no longer ours (e.g.
// it expired and another instance took it), signalling the caller to
// stop the device.
func (s *Store) RefreshLock(deviceID, instanceID string, ttl time.Duration) (bool, error) {
	res, err := s.DB.Exec(`UPDATE device_locks SET expires_at = ? WHERE device_id = ? AND instance_id = ?`,
		time.Now().Add(ttl).Unix(), deviceID, instanceID)
	if err != nil {
		return false, fmt.Errorf("store: refresh lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: refresh lock: %w", err)
	}
	return n == 1, nil
}

// ReleaseLock deletes the lock row only if instanceID still owns it —
// never a blind delete, per spec.md §4.H.
func (s *Store) ReleaseLock(deviceID, instanceID string) error {
	_, err := s.DB.Exec(`DELETE FROM device_locks WHERE device_id = ? AND instance_id = ?`, deviceID, instanceID)
	if err != nil {
		return fmt.Errorf("store: release lock: %w", err)
	}
	return nil
}

// FindLock returns the current lock row for a device, if any — used by
// I5's cross-process single-writer probe in tests.
func (s *Store) FindLock(deviceID string) (*DeviceLock, error) {
	var l DeviceLock
	err := s.DB.Get(&l, `SELECT * FROM device_locks WHERE device_id = ?`, deviceID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find lock: %w", err)
	}
	return &l, nil
}

// ReapExpiredLocks deletes lock rows whose expiry is older than
// olderThan in the past, bounding table growth across many crashed
// instances (the supplemented reaper of SPEC_FULL.md §3).
func (s *Store) ReapExpiredLocks(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := s.DB.Exec(`DELETE FROM device_locks WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: reap expired locks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
