package store

import "fmt"

// DeviceCountsByStatus feeds component I's device-count-by-status
// gauges.
func (s *Store) DeviceCountsByStatus() (map[string]int64, error) {
	rows, err := s.DB.Query(`SELECT status, COUNT(*) FROM devices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: device counts by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("store: device counts by status: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountOutboxByStatus counts outbox rows in one status. No caller in this
// module; the messages-sent counter is fed by metrics.RecordMessageSent.
func (s *Store) CountOutboxByStatus(status string) (int64, error) {
	var n int64
	if err := s.DB.Get(&n, `SELECT COUNT(*) FROM outbox WHERE status = ?`, status); err != nil {
		return 0, fmt.Errorf("store: count outbox by status: %w", err)
	}
	return n, nil
}

// CountInboxTotal counts inbox rows. No caller in this module; the
// messages-received counter is fed by metrics.RecordMessageReceived.
func (s *Store) CountInboxTotal() (int64, error) {
	var n int64
	if err := s.DB.Get(&n, `SELECT COUNT(*) FROM inbox`); err != nil {
		return 0, fmt.Errorf("store: count inbox total: %w", err)
	}
	return n, nil
}
