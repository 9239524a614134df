// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nullgravity/nullgravity/internal/models"
)

// GetAllSettings returns the merged settings map: stored rows layered over
// the compile-time defaults, with data_dir forced to the runtime path.
func (db *DB) GetAllSettings(ctx context.Context, dataDir string) (map[string]string, error) {
	merged := make(map[string]string, len(models.DefaultSettings))
	for k, v := range models.DefaultSettings {
		merged[k] = v
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		merged[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	merged[models.SettingDataDir] = dataDir
	return merged, nil
}

// GetSetting returns a single stored setting value, falling back to the
// compile-time default. ok is false when the key is unknown everywhere.
func (db *DB) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err == nil {
		return value, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	if def, ok := models.DefaultSettings[key]; ok {
		return def, true, nil
	}
	return "", false, nil
}

// UpsertSettings writes a batch of settings in one transaction.
func (db *DB) UpsertSettings(ctx context.Context, updates []models.SettingUpdate) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, u := range updates {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			u.Key, u.Value, now)
		if err != nil {
			return fmt.Errorf("failed to upsert setting %q: %w", u.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}
