package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateTenant inserts a new tenant row. apiKeyHash is the fingerprint
// of the issued token (crypto.TokenFingerprint), never the token.
func (s *Store) CreateTenant(id, name, apiKeyHash string) (*Tenant, error) {
	now := time.Now().Unix()
	t := &Tenant{ID: id, Name: name, APIKeyHash: apiKeyHash, Status: TenantStatusActive, CreatedAt: now, UpdatedAt: now}
	_, err := s.DB.NamedExec(`INSERT INTO tenants (id, name, api_key_hash, status, created_at, updated_at)
		VALUES (:id, :name, :api_key_hash, :status, :created_at, :updated_at)`, t)
	if err != nil {
		return nil, fmt.Errorf("store: create tenant: %w", err)
	}
	return t, nil
}

// FindTenantByID returns a non-deleted tenant by id.
func (s *Store) FindTenantByID(id string) (*Tenant, error) {
	var t Tenant
	err := s.DB.Get(&t, `SELECT * FROM tenants WHERE id = ? AND status != ?`, id, TenantStatusDeleted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find tenant: %w", err)
	}
	return &t, nil
}

// FindTenantByAPIKeyHash looks up a tenant by the fingerprint of its
// issued token. Used by the tenant auth gate.
func (s *Store) FindTenantByAPIKeyHash(hash string) (*Tenant, error) {
	var t Tenant
	err := s.DB.Get(&t, `SELECT * FROM tenants WHERE api_key_hash = ? AND status != ?`, hash, TenantStatusDeleted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find tenant by api key hash: %w", err)
	}
	return &t, nil
}

// ListTenants returns all non-deleted tenants, newest first.
func (s *Store) ListTenants() ([]Tenant, error) {
	var ts []Tenant
	err := s.DB.Select(&ts, `SELECT * FROM tenants WHERE status != ? ORDER BY created_at DESC`, TenantStatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("store: list tenants: %w", err)
	}
	return ts, nil
}

// SetTenantStatus transitions a tenant between active/suspended.
func (s *Store) SetTenantStatus(id, status string) error {
	res, err := s.DB.Exec(`UPDATE tenants SET status = ?, updated_at = ? WHERE id = ? AND status != ?`,
		status, time.Now().Unix(), id, TenantStatusDeleted)
	if err != nil {
		return fmt.Errorf("store: set tenant status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteTenant tombstones the tenant (I6: cascades logical
// inaccessibility; physical FK cascade deletes devices and their
// dependents only once the tenant itself is hard-deleted, which this
// gateway never does automatically — tombstoning is the terminal state
// exposed to tenant APIs).
func (s *Store) SoftDeleteTenant(id string) error {
	return s.SetTenantStatus(id, TenantStatusDeleted)
}

// HardDeleteTenant physically removes a tenant and, via ON DELETE
// CASCADE, its devices, sessions, outbox/inbox/event rows, webhooks and
// webhook logs, inside a single transaction. Only ever invoked by an
// operator against an already-tombstoned tenant; never exposed to the
// tenant-facing API.
func (s *Store) HardDeleteTenant(id string) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("store: hard delete tenant: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: hard delete tenant: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
