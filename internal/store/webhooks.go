package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MessageStatusAlias expands to the set of event types subscribed to
// via the "message.status" alias (spec.md §4.F/§6/I8).
var MessageStatusAlias = []string{"message.updated", "receipt.delivery", "receipt.read"}

func joinEvents(events []string) string { return strings.Join(events, ",") }
func splitEvents(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CreateWebhook registers a tenant's webhook subscription.
func (s *Store) CreateWebhook(id, tenantID, url, secret string, events []string, retryCount, timeoutMS int) (*Webhook, error) {
	now := time.Now().Unix()
	w := &Webhook{
		ID: id, TenantID: tenantID, URL: url, Secret: secret, Events: joinEvents(events),
		Enabled: true, RetryCount: retryCount, TimeoutMS: timeoutMS, CreatedAt: now, UpdatedAt: now,
	}
	_, err := s.DB.NamedExec(`INSERT INTO webhooks (id, tenant_id, url, secret, events, enabled, retry_count, timeout_ms, created_at, updated_at)
		VALUES (:id, :tenant_id, :url, :secret, :events, :enabled, :retry_count, :timeout_ms, :created_at, :updated_at)`, w)
	if err != nil {
		return nil, fmt.Errorf("store: create webhook: %w", err)
	}
	return w, nil
}

// EventsList parses the stored comma-joined events column.
func (w *Webhook) EventsList() []string { return splitEvents(w.Events) }

// FindWebhookByTenant scopes a webhook lookup to its owning tenant.
func (s *Store) FindWebhookByTenant(tenantID, id string) (*Webhook, error) {
	var w Webhook
	err := s.DB.Get(&w, `SELECT * FROM webhooks WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find webhook: %w", err)
	}
	return &w, nil
}

// ListWebhooksByTenant lists a tenant's registered webhooks.
func (s *Store) ListWebhooksByTenant(tenantID string) ([]Webhook, error) {
	var ws []Webhook
	err := s.DB.Select(&ws, `SELECT * FROM webhooks WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store: list webhooks: %w", err)
	}
	return ws, nil
}

// MatchingWebhooks implements the subscription query of spec.md §4.F
// step 2: enabled webhooks for the tenant whose events set contains
// eventType directly, or contains "message.status" when eventType is in
// the alias expansion set.
func (s *Store) MatchingWebhooks(tenantID, eventType string) ([]Webhook, error) {
	var all []Webhook
	err := s.DB.Select(&all, `SELECT * FROM webhooks WHERE tenant_id = ? AND enabled = 1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store: matching webhooks: %w", err)
	}

	isAliasMember := false
	for _, e := range MessageStatusAlias {
		if e == eventType {
			isAliasMember = true
			break
		}
	}

	matched := make([]Webhook, 0, len(all))
	for _, w := range all {
		for _, sub := range w.EventsList() {
			if sub == eventType || (sub == "message.status" && isAliasMember) {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, nil
}

// UpdateWebhook updates the mutable fields of a subscription.
func (s *Store) UpdateWebhook(tenantID, id, url, secret string, events []string, enabled bool, retryCount, timeoutMS int) error {
	res, err := s.DB.Exec(`UPDATE webhooks SET url = ?, secret = ?, events = ?, enabled = ?, retry_count = ?, timeout_ms = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		url, secret, joinEvents(events), enabled, retryCount, timeoutMS, time.Now().Unix(), id, tenantID)
	if err != nil {
		return fmt.Errorf("store: update webhook: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWebhook removes a tenant's webhook subscription.
func (s *Store) DeleteWebhook(tenantID, id string) error {
	res, err := s.DB.Exec(`DELETE FROM webhooks WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("store: delete webhook: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountEnabledWebhooks feeds the active-webhooks gauge of component I.
func (s *Store) CountEnabledWebhooks() (int64, error) {
	var n int64
	err := s.DB.Get(&n, `SELECT COUNT(*) FROM webhooks WHERE enabled = 1`)
	if err != nil {
		return 0, fmt.Errorf("store: count enabled webhooks: %w", err)
	}
	return n, nil
}
