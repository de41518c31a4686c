package cache

import "time"

// UpsertMessage inserts or updates a message (idempotent on server_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (server_id, partner_id, sender_id, sender_name, receiver_id, receiver_name, body, read, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			body = excluded.body,
			read = excluded.read`,
		m.ServerID, m.PartnerID, m.SenderID, m.SenderName, m.ReceiverID, m.ReceiverName, m.Body, m.Read, m.Timestamp, now)
	return err
}

// ReplaceHistory swaps a partner's conversation in one transaction after a
// fresh history fetch.
func (db *DB) ReplaceHistory(partnerID int64, msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE partner_id = ?`, partnerID); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (server_id, partner_id, sender_id, sender_name, receiver_id, receiver_name, body, read, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) DO UPDATE SET
				body = excluded.body,
				read = excluded.read`,
			m.ServerID, partnerID, m.SenderID, m.SenderName, m.ReceiverID, m.ReceiverName, m.Body, m.Read, m.Timestamp, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListMessages returns a partner's conversation, oldest first.
func (db *DB) ListMessages(partnerID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT server_id, partner_id, sender_id, sender_name, receiver_id, receiver_name, body, read, timestamp
		FROM messages
		WHERE partner_id = ?
		ORDER BY timestamp ASC`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ServerID, &m.PartnerID, &m.SenderID, &m.SenderName, &m.ReceiverID, &m.ReceiverName, &m.Body, &m.Read, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkRead flips the read flag on all cached messages sent by the partner
// and zeroes the partner's unread count. Mirrors the server-side mark-read.
func (db *DB) MarkRead(partnerID int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE messages SET read = 1 WHERE partner_id = ? AND sender_id = ?`, partnerID, partnerID); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`UPDATE partners SET unread_count = 0, updated_at = ? WHERE id = ?`, now, partnerID); err != nil {
		return err
	}
	return tx.Commit()
}
