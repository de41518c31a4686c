package cache

import (
	"database/sql"
	"time"
)

// UpsertPartner inserts or updates a partner record.
func (db *DB) UpsertPartner(p *Partner) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO partners (id, full_name, email, unread_count, last_message, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			email = excluded.email,
			unread_count = excluded.unread_count,
			last_message = excluded.last_message,
			last_message_at = excluded.last_message_at,
			updated_at = excluded.updated_at`,
		p.ID, p.FullName, p.Email, p.UnreadCount, p.LastMessage, p.LastMessageAt, now)
	return err
}

// ReplacePartners swaps the whole partner list in one transaction. Used after
// a fresh server fetch, which is always authoritative over the cache.
func (db *DB) ReplacePartners(partners []Partner) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM partners`); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for _, p := range partners {
		if _, err := tx.Exec(`
			INSERT INTO partners (id, full_name, email, unread_count, last_message, last_message_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.FullName, p.Email, p.UnreadCount, p.LastMessage, p.LastMessageAt, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListPartners returns partners sorted by last message timestamp descending.
// Partners with no messages (zero timestamp) sort last.
func (db *DB) ListPartners() ([]Partner, error) {
	rows, err := db.Query(`
		SELECT id, full_name, email, unread_count, last_message, last_message_at
		FROM partners
		ORDER BY last_message_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var partners []Partner
	for rows.Next() {
		var p Partner
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &p.UnreadCount, &p.LastMessage, &p.LastMessageAt); err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// GetPartner returns a single partner, or nil when not cached.
func (db *DB) GetPartner(id int64) (*Partner, error) {
	var p Partner
	err := db.QueryRow(`
		SELECT id, full_name, email, unread_count, last_message, last_message_at
		FROM partners WHERE id = ?`, id).
		Scan(&p.ID, &p.FullName, &p.Email, &p.UnreadCount, &p.LastMessage, &p.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
