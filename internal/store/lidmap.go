package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertLIDPhoneMap caches a LID↔phone-number resolution learned from a
// protocol event (spec.md §3: "derived caches ... not core
// invariant-bearing").
func (s *Store) UpsertLIDPhoneMap(deviceID, lid, phoneNumber string) error {
	_, err := s.DB.Exec(`INSERT INTO lid_phone_map (device_id, lid, phone_number, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, lid) DO UPDATE SET phone_number = excluded.phone_number, updated_at = excluded.updated_at`,
		deviceID, lid, phoneNumber, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: upsert lid phone map: %w", err)
	}
	return nil
}

// FindPhoneByLID resolves a LID to its cached phone number (the
// supplemented read path of SPEC_FULL.md §3).
func (s *Store) FindPhoneByLID(deviceID, lid string) (string, error) {
	var phone string
	err := s.DB.Get(&phone, `SELECT phone_number FROM lid_phone_map WHERE device_id = ? AND lid = ?`, deviceID, lid)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: find phone by lid: %w", err)
	}
	return phone, nil
}
