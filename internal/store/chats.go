package store

import (
	"fmt"
	"time"
)

// UpsertChat maintains the cached chat-list row populated from protocol
// chat upsert/update events (spec.md §3, "not core invariant-bearing").
func (s *Store) UpsertChat(deviceID, jid, name string, lastMessageAt *int64, unreadCount int) error {
	_, err := s.DB.Exec(`INSERT INTO chats (device_id, jid, name, last_message_at, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, jid) DO UPDATE SET name = excluded.name,
			last_message_at = excluded.last_message_at, unread_count = excluded.unread_count, updated_at = excluded.updated_at`,
		deviceID, jid, name, lastMessageAt, unreadCount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: upsert chat: %w", err)
	}
	return nil
}

// ListChats returns the cached chat list for a device.
func (s *Store) ListChats(deviceID string) ([]Chat, error) {
	var rows []Chat
	err := s.DB.Select(&rows, `SELECT * FROM chats WHERE device_id = ? ORDER BY last_message_at DESC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("store: list chats: %w", err)
	}
	return rows, nil
}

// DeleteChat removes a chat row on a protocol chat-delete event.
func (s *Store) DeleteChat(deviceID, jid string) error {
	_, err := s.DB.Exec(`DELETE FROM chats WHERE device_id = ? AND jid = ?`, deviceID, jid)
	if err != nil {
		return fmt.Errorf("store: delete chat: %w", err)
	}
	return nil
}
