// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/models"
)

// InsertEvent persists one business event and fills in its sequence id and
// timestamp.
func (db *DB) InsertEvent(ctx context.Context, evt *models.Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if evt.Level == "" {
		evt.Level = models.EventLevelInfo
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO events (type, level, message, details, account_id, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		evt.Type, evt.Level, evt.Message, evt.Details, evt.AccountID, evt.Timestamp).
		Scan(&evt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events joined with the owning account's
// email and, when the avatar is cached, its serving path.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]models.EventItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT e.id, e.type, e.level, e.message, e.timestamp,
			a.id, a.email, a.avatar_cached
		 FROM events e
		 LEFT JOIN accounts a ON e.account_id = a.id
		 ORDER BY e.timestamp DESC, e.id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	items := []models.EventItem{}
	for rows.Next() {
		var it models.EventItem
		var accID sql.NullString
		var accEmail sql.NullString
		var avatarCached sql.NullBool
		if err := rows.Scan(&it.ID, &it.Type, &it.Level, &it.Message, &it.Timestamp,
			&accID, &accEmail, &avatarCached); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if accEmail.Valid {
			it.AccountEmail = accEmail.String
		}
		if accID.Valid && avatarCached.Valid && avatarCached.Bool {
			if id, err := uuid.Parse(accID.String); err == nil {
				it.AccountAvatar = "/api/accounts/" + id.String() + "/avatar"
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountEvents returns the total number of stored events.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// ClearEvents deletes all events.
func (db *DB) ClearEvents(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	return nil
}
