package store

import "fmt"

// CreateEventLog appends one event_logs row. Append-only; retention is
// a separate (unspecified) concern per spec.md §3.
func (s *Store) CreateEventLog(id, tenantID, deviceID, eventType string, payload []byte, receivedAt int64) error {
	_, err := s.DB.Exec(`INSERT INTO event_logs (id, tenant_id, device_id, event_type, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`, id, tenantID, deviceID, eventType, payload, receivedAt)
	if err != nil {
		return fmt.Errorf("store: create event log: %w", err)
	}
	return nil
}

// EventQuery filters the pull-based GET /events endpoint.
type EventQuery struct {
	Since     int64
	EventType string
	Limit     int
}

// ListEvents returns event_logs rows for a device matching the query,
// newest first, capped at Limit; a Limit that is not positive or exceeds
// 500 is treated as 500.
func (s *Store) ListEvents(tenantID, deviceID string, q EventQuery) ([]EventLogRow, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var rows []EventLogRow
	var err error
	switch {
	case q.EventType != "":
		err = s.DB.Select(&rows, `SELECT * FROM event_logs WHERE tenant_id = ? AND device_id = ?
			AND received_at >= ? AND event_type = ? ORDER BY received_at DESC LIMIT ?`,
			tenantID, deviceID, q.Since, q.EventType, limit)
	default:
		err = s.DB.Select(&rows, `SELECT * FROM event_logs WHERE tenant_id = ? AND device_id = ?
			AND received_at >= ? ORDER BY received_at DESC LIMIT ?`,
			tenantID, deviceID, q.Since, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return rows, nil
}
