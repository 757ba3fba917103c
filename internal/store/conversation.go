package store

import (
	"database/sql"
	"time"
)

// UpsertSnapshot inserts or updates a conversation's latest-message snapshot.
// Peer fields are kept when the incoming value is empty, so a push that only
// carries ids does not erase a username learned from the REST list.
// The unread counter is NOT touched here; use SetUnread/IncrementUnread.
func (db *DB) UpsertSnapshot(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, peer_id, peer_username, unread_count, last_msg_id, last_body, last_sender_id, last_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			peer_id = CASE WHEN excluded.peer_id != 0 THEN excluded.peer_id ELSE conversations.peer_id END,
			peer_username = CASE WHEN excluded.peer_username != '' THEN excluded.peer_username ELSE conversations.peer_username END,
			last_msg_id = excluded.last_msg_id,
			last_body = excluded.last_body,
			last_sender_id = excluded.last_sender_id,
			last_at = excluded.last_at,
			updated_at = excluded.updated_at`,
		c.ID, c.PeerID, c.PeerUsername, c.LastMsgID, c.LastBody, c.LastSenderID, c.LastAt, now)
	return err
}

// ReplaceConversation overwrites a conversation row with server-authoritative
// state, unread counter included. Used when reconciling the REST list.
func (db *DB) ReplaceConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, peer_id, peer_username, unread_count, last_msg_id, last_body, last_sender_id, last_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			peer_id = excluded.peer_id,
			peer_username = excluded.peer_username,
			unread_count = excluded.unread_count,
			last_msg_id = excluded.last_msg_id,
			last_body = excluded.last_body,
			last_sender_id = excluded.last_sender_id,
			last_at = excluded.last_at,
			updated_at = excluded.updated_at`,
		c.ID, c.PeerID, c.PeerUsername, c.UnreadCount, c.LastMsgID, c.LastBody, c.LastSenderID, c.LastAt, now)
	return err
}

// ListConversations returns conversations sorted by last message time descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, peer_id, peer_username, unread_count, last_msg_id, last_body, last_sender_id, last_at
		FROM conversations
		ORDER BY last_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.PeerID, &c.PeerUsername, &c.UnreadCount, &c.LastMsgID, &c.LastBody, &c.LastSenderID, &c.LastAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation by id, or nil if absent.
func (db *DB) GetConversation(id int64) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, peer_id, peer_username, unread_count, last_msg_id, last_body, last_sender_id, last_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.PeerID, &c.PeerUsername, &c.UnreadCount, &c.LastMsgID, &c.LastBody, &c.LastSenderID, &c.LastAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetUnread sets a conversation's unread counter to an absolute value.
func (db *DB) SetUnread(id int64, n int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = ?, updated_at = ? WHERE id = ?`, n, now, id)
	return err
}

// IncrementUnread bumps a conversation's unread counter by one. The counter
// is updated in SQL so concurrent merges cannot lose increments.
func (db *DB) IncrementUnread(id int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = unread_count + 1, updated_at = ? WHERE id = ?`, now, id)
	return err
}
