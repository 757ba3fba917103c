package store

import "time"

// QueueOutbox adds a message to the send outbox. Exactly one of
// conversationID / recipient must be set: an existing conversation id, or a
// username for a first-contact send.
func (db *DB) QueueOutbox(clientRef string, conversationID int64, recipient, body string, mediaID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_ref, conversation_id, recipient, body, media_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)`,
		clientRef, conversationID, recipient, body, mediaID, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(clientRef string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_ref = ?`, now, clientRef)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message id
// and the (possibly server-minted) conversation id.
func (db *DB) MarkOutboxSent(clientRef, serverMsgID string, conversationID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ?, conversation_id = ?, updated_at = ? WHERE client_ref = ?`,
		serverMsgID, conversationID, now, clientRef)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientRef, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_ref = ?`, errMsg, now, clientRef)
	return err
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_ref, conversation_id, recipient, body, media_id, status, error_message, server_msg_id
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientRef, &e.ConversationID, &e.Recipient, &e.Body, &e.MediaID, &e.Status, &e.ErrorMessage, &e.ServerMsgID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
