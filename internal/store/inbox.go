package store

import "fmt"

// CreateInboxRow persists an inbound message, captured by (D)'s message
// hook before being enqueued into (F).
func (s *Store) CreateInboxRow(id, tenantID, deviceID, jid, messageID, messageType string, payload []byte, receivedAt int64) error {
	_, err := s.DB.Exec(`INSERT INTO inbox (id, tenant_id, device_id, jid, message_id, message_type, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, deviceID, jid, messageID, messageType, payload, receivedAt)
	if err != nil {
		return fmt.Errorf("store: create inbox row: %w", err)
	}
	return nil
}

// ListInboxByDevice returns inbound rows for a device, newest first.
func (s *Store) ListInboxByDevice(tenantID, deviceID string, limit int) ([]InboxRow, error) {
	var rows []InboxRow
	err := s.DB.Select(&rows, `SELECT * FROM inbox WHERE tenant_id = ? AND device_id = ?
		ORDER BY received_at DESC LIMIT ?`, tenantID, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list inbox by device: %w", err)
	}
	return rows, nil
}
