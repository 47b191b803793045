package store

import (
	"database/sql"
	"fmt"
	"time"
)

// FindOutboxByIdempotencyKey supports the idempotency contract of
// spec.md §4.E / I4: a resubmission with the same (device_id,
// idempotency_key) MUST return the prior row unchanged.
func (s *Store) FindOutboxByIdempotencyKey(deviceID, key string) (*OutboxRow, error) {
	var row OutboxRow
	err := s.DB.Get(&row, `SELECT * FROM outbox WHERE device_id = ? AND idempotency_key = ?`, deviceID, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find outbox by idempotency key: %w", err)
	}
	return &row, nil
}

// CreateOutboxRow inserts a new pending outbox row. If idempotencyKey is
// non-empty and a concurrent insert races this one on the unique index,
// the caller should re-query FindOutboxByIdempotencyKey and use that row
// instead of treating the error as fatal.
func (s *Store) CreateOutboxRow(id, tenantID, deviceID, jid, messageType string, payload []byte, idempotencyKey *string) (*OutboxRow, error) {
	now := time.Now().Unix()
	row := &OutboxRow{
		ID: id, TenantID: tenantID, DeviceID: deviceID, JID: jid, MessageType: messageType,
		Payload: payload, Status: OutboxStatusPending, IdempotencyKey: idempotencyKey,
		CreatedAt: now, UpdatedAt: now,
	}
	_, err := s.DB.NamedExec(`INSERT INTO outbox
		(id, tenant_id, device_id, jid, message_type, payload, status, retries, idempotency_key, created_at, updated_at)
		VALUES (:id, :tenant_id, :device_id, :jid, :message_type, :payload, :status, 0, :idempotency_key, :created_at, :updated_at)`, row)
	if err != nil {
		return nil, fmt.Errorf("store: create outbox row: %w", err)
	}
	return row, nil
}

// FindOutboxByTenant scopes a read to the owning tenant (mirrors the
// device lookup rule: no unscoped outbox lookup for tenant handlers).
func (s *Store) FindOutboxByTenant(tenantID, id string) (*OutboxRow, error) {
	var row OutboxRow
	err := s.DB.Get(&row, `SELECT * FROM outbox WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find outbox row: %w", err)
	}
	return &row, nil
}

// ReadyOutboxRows returns pending rows, plus queued rows stuck past
// stuckAfter, ordered by created_at (FIFO per spec.md §5), for the
// sender worker's poll loop.
func (s *Store) ReadyOutboxRows(limit int, stuckAfter time.Duration) ([]OutboxRow, error) {
	cutoff := time.Now().Add(-stuckAfter).Unix()
	var rows []OutboxRow
	err := s.DB.Select(&rows, `SELECT * FROM outbox
		WHERE status = ? OR (status = ? AND updated_at < ?)
		ORDER BY created_at ASC LIMIT ?`,
		OutboxStatusPending, OutboxStatusQueued, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("store: ready outbox rows: %w", err)
	}
	return rows, nil
}

// CASOutboxStatus performs the conditional update central to the
// sender's step 1: pending -> sending only if the row is still in the
// expected "from" state. Returns false on CAS miss (another worker
// already claimed it), which the caller must treat as a skip, not an
// error.
func (s *Store) CASOutboxStatus(id, from, to string) (bool, error) {
	res, err := s.DB.Exec(`UPDATE outbox SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().Unix(), id, from)
	if err != nil {
		return false, fmt.Errorf("store: cas outbox status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: cas outbox status: %w", err)
	}
	return n == 1, nil
}

// MarkOutboxSent records the protocol-assigned message id and
// transitions to sent.
func (s *Store) MarkOutboxSent(id, waMessageID string) error {
	now := time.Now().Unix()
	_, err := s.DB.Exec(`UPDATE outbox SET status = ?, wa_message_id = ?, sent_at = ?, updated_at = ? WHERE id = ?`,
		OutboxStatusSent, waMessageID, now, now, id)
	if err != nil {
		return fmt.Errorf("store: mark outbox sent: %w", err)
	}
	return nil
}

// MarkOutboxRetry reverts to pending, increments retries, and records
// the last error, for transient failures (device not connected,
// transport hiccup) within the retry ceiling.
func (s *Store) MarkOutboxRetry(id, errMsg string) error {
	_, err := s.DB.Exec(`UPDATE outbox SET status = ?, retries = retries + 1, error_message = ?, updated_at = ? WHERE id = ?`,
		OutboxStatusPending, errMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: mark outbox retry: %w", err)
	}
	return nil
}

// MarkOutboxFailed is the terminal state for exhausted retries or
// permanent upstream rejection; no further retry is scheduled.
func (s *Store) MarkOutboxFailed(id, errMsg string) error {
	_, err := s.DB.Exec(`UPDATE outbox SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		OutboxStatusFailed, errMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: mark outbox failed: %w", err)
	}
	return nil
}

// ExpireStaleOutboxRows transitions pending/queued rows older than
// horizon to expired.
func (s *Store) ExpireStaleOutboxRows(horizon time.Duration) (int64, error) {
	cutoff := time.Now().Add(-horizon).Unix()
	res, err := s.DB.Exec(`UPDATE outbox SET status = ?, updated_at = ? WHERE status IN (?, ?) AND created_at < ?`,
		OutboxStatusExpired, time.Now().Unix(), OutboxStatusPending, OutboxStatusQueued, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: expire stale outbox rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AdvanceOutboxByWAMessageID matches a delivery/read receipt on the
// protocol-assigned id and advances status (delivered/read), the path
// by which (D)'s event hooks update rows produced by (E).
func (s *Store) AdvanceOutboxByWAMessageID(waMessageID, newStatus string) error {
	_, err := s.DB.Exec(`UPDATE outbox SET status = ?, updated_at = ? WHERE wa_message_id = ?`,
		newStatus, time.Now().Unix(), waMessageID)
	if err != nil {
		return fmt.Errorf("store: advance outbox by wa message id: %w", err)
	}
	return nil
}

// TombstoneOutboxRow marks a send as deleted/cancelled by the caller
// (DELETE /messages/{id}) — only meaningful before a terminal state.
func (s *Store) TombstoneOutboxRow(tenantID, id string) error {
	res, err := s.DB.Exec(`UPDATE outbox SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?
		AND status NOT IN (?, ?, ?, ?)`,
		OutboxStatusExpired, time.Now().Unix(), id, tenantID,
		OutboxStatusSent, OutboxStatusDelivered, OutboxStatusRead, OutboxStatusFailed)
	if err != nil {
		return fmt.Errorf("store: tombstone outbox row: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
