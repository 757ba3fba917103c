package store

import (
	"database/sql"
	"time"
)

// InsertMessage inserts a message if its msg_id is not already cached.
// Returns whether a row was actually inserted. Messages are append-only:
// an existing row is never modified by this call, which makes the merge
// operation idempotent on message identifier.
func (db *DB) InsertMessage(m *Message) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT OR IGNORE INTO messages (msg_id, conversation_id, sender_id, recipient_id, sender_name, body, media_id, status, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MsgID, m.ConversationID, m.SenderID, m.RecipientID, m.SenderName, m.Body, m.MediaID, m.Status, m.SentAt, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMessages returns messages for a conversation using keyset pagination
// by sent timestamp, newest first.
func (db *DB) ListMessages(conversationID int64, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, msg_id, conversation_id, sender_id, recipient_id, sender_name, body, media_id, status, sent_at
		FROM messages
		WHERE conversation_id = ? AND sent_at < ?
		ORDER BY sent_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.MsgID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.SenderName, &m.Body, &m.MediaID, &m.Status, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AdoptSent rewrites an optimistic pending message (keyed by its client ref)
// with the server-assigned identifiers once the send succeeds. The pushed
// echo of the same message then deduplicates against the adopted msg_id.
// The echo may also land first: in that case the server row already holds
// the msg_id, so the optimistic copy is dropped instead of rewritten.
func (db *DB) AdoptSent(clientRef string, m *Message) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var echoID int64
	err = tx.QueryRow(`SELECT id FROM messages WHERE msg_id = ?`, m.MsgID).Scan(&echoID)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`
			UPDATE messages
			SET msg_id = ?, conversation_id = ?, recipient_id = ?, status = 'sent', sent_at = ?
			WHERE msg_id = ?`,
			m.MsgID, m.ConversationID, m.RecipientID, m.SentAt, clientRef); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err := tx.Exec(`UPDATE messages SET status = 'sent' WHERE id = ?`, echoID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM messages WHERE msg_id = ?`, clientRef); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetMessageStatus updates the delivery status of a cached message.
func (db *DB) SetMessageStatus(msgID, status string) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE msg_id = ?`, status, msgID)
	return err
}
