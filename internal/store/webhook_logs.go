package store

import (
	"fmt"
	"time"
)

// CreateWebhookLog records one delivery attempt's outcome
// (spec.md §4.F step 5).
func (s *Store) CreateWebhookLog(id, webhookID string, eventID *string, statusCode *int, attempts int, lastError *string) error {
	now := time.Now().Unix()
	_, err := s.DB.Exec(`INSERT INTO webhook_logs (id, webhook_id, event_id, status_code, attempts, last_error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, webhookID, eventID, statusCode, attempts, lastError, now)
	if err != nil {
		return fmt.Errorf("store: create webhook log: %w", err)
	}
	return nil
}

// ListWebhookLogs returns delivery logs for a webhook, newest first.
func (s *Store) ListWebhookLogs(webhookID string, limit int) ([]WebhookLog, error) {
	var rows []WebhookLog
	err := s.DB.Select(&rows, `SELECT * FROM webhook_logs WHERE webhook_id = ? ORDER BY sent_at DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list webhook logs: %w", err)
	}
	return rows, nil
}

// CreateDLQRow inserts a terminal, retry-exhausted delivery (spec.md
// §4.F step 6).
func (s *Store) CreateDLQRow(id, webhookID string, eventPayload []byte, reason string) error {
	_, err := s.DB.Exec(`INSERT INTO dlq (id, webhook_id, event_payload, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, webhookID, eventPayload, reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: create dlq row: %w", err)
	}
	return nil
}

// ListDLQByWebhook returns dead-lettered deliveries for a webhook.
func (s *Store) ListDLQByWebhook(webhookID string, limit int) ([]DLQRow, error) {
	var rows []DLQRow
	err := s.DB.Select(&rows, `SELECT * FROM dlq WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list dlq by webhook: %w", err)
	}
	return rows, nil
}

// CountDLQ feeds the DLQ-size gauge of component I.
func (s *Store) CountDLQ() (int64, error) {
	var n int64
	if err := s.DB.Get(&n, `SELECT COUNT(*) FROM dlq`); err != nil {
		return 0, fmt.Errorf("store: count dlq: %w", err)
	}
	return n, nil
}
