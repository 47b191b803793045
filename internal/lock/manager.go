// Package lock implements component H: the row-based distributed lock
// over internal/store's device_locks table, plus a background reaper
// that bounds table growth across crashed instances.
package lock

import (
	"time"

	"github.com/rijan-wa/gateway/internal/store"
)

// Manager is a thin, named wrapper around the store's lock primitives,
// giving component H its own package identity per SPEC_FULL.md's
// module layout while the actual transactional algorithm stays in
// internal/store (it must run inside the same transaction as any
// other row touched alongside it, so it cannot live one layer above
// the database handle).
type Manager struct {
	store      *store.Store
	instanceID string
}

// New constructs a Manager bound to instanceID (this process's
// identity, per spec.md §6's INSTANCE_ID).
func New(st *store.Store, instanceID string) *Manager {
	return &Manager{store: st, instanceID: instanceID}
}

// Acquire implements spec.md §4.H's insert-or-update-where-expired
// algorithm for deviceID.
func (m *Manager) Acquire(deviceID string, ttl time.Duration) (bool, error) {
	return m.store.AcquireLock(deviceID, m.instanceID, ttl)
}

// Refresh extends the lock if still owned by this instance.
func (m *Manager) Refresh(deviceID string, ttl time.Duration) (bool, error) {
	return m.store.RefreshLock(deviceID, m.instanceID, ttl)
}

// Release deletes the lock row only if this instance still owns it.
func (m *Manager) Release(deviceID string) error {
	return m.store.ReleaseLock(deviceID, m.instanceID)
}

// InstanceID returns this process's lock identity.
func (m *Manager) InstanceID() string { return m.instanceID }
