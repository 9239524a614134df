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

	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/models"
)

// Account errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailConflict   = errors.New("account with this email already exists")
)

const accountColumns = `id, email, display_name, avatar_url, avatar_cached,
	provider, status, label, quota_percent, is_forbidden, is_disabled, tier,
	status_reason, status_details, quota_buckets, models,
	created_at, updated_at, last_sync_at`

// CreateAccount inserts a new account. ID and timestamps are assigned when
// unset; provider defaults to "google" and status to "active".
func (db *DB) CreateAccount(ctx context.Context, acc *models.Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	acc.UpdatedAt = acc.CreatedAt
	if acc.Provider == "" {
		acc.Provider = "google"
	}
	if acc.Status == "" {
		acc.Status = models.AccountStatusActive
	}

	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		acc.ID, acc.Email, acc.DisplayName, acc.AvatarURL, acc.AvatarCached,
		acc.Provider, acc.Status, acc.Label, acc.QuotaPercent, acc.IsForbidden,
		acc.IsDisabled, acc.Tier, acc.StatusReason, acc.StatusDetails,
		acc.QuotaBuckets, acc.Models, acc.CreatedAt, acc.UpdatedAt, acc.LastSyncAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailConflict
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (db *DB) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetAccountByEmail retrieves an account by email.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

// ListAccounts returns all accounts ordered by creation time.
func (db *DB) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		acc, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// UpdateAccount applies a partial update. Nil fields keep their current
// value. Returns the updated account.
func (db *DB) UpdateAccount(ctx context.Context, id uuid.UUID, upd *models.AccountUpdate) (*models.Account, error) {
	acc, err := db.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.DisplayName != nil {
		acc.DisplayName = *upd.DisplayName
	}
	if upd.AvatarURL != nil && *upd.AvatarURL != acc.AvatarURL {
		acc.AvatarURL = *upd.AvatarURL
		acc.AvatarCached = false // cache is keyed to the old URL
	}
	if upd.Status != nil {
		acc.Status = *upd.Status
	}
	if upd.Label != nil {
		acc.Label = *upd.Label
	}
	if upd.QuotaPercent != nil {
		acc.QuotaPercent = *upd.QuotaPercent
	}
	if upd.IsForbidden != nil {
		acc.IsForbidden = *upd.IsForbidden
	}
	if upd.IsDisabled != nil {
		acc.IsDisabled = *upd.IsDisabled
	}
	if upd.Tier != nil {
		acc.Tier = *upd.Tier
	}
	if upd.StatusReason != nil {
		acc.StatusReason = *upd.StatusReason
	}
	if upd.StatusDetails != nil {
		acc.StatusDetails = *upd.StatusDetails
	}
	if upd.QuotaBuckets != nil {
		acc.QuotaBuckets = *upd.QuotaBuckets
	}
	if upd.Models != nil {
		acc.Models = *upd.Models
	}
	acc.UpdatedAt = time.Now().UTC()

	query := `UPDATE accounts SET
		display_name = ?, avatar_url = ?, avatar_cached = ?, status = ?,
		label = ?, quota_percent = ?, is_forbidden = ?, is_disabled = ?,
		tier = ?, status_reason = ?, status_details = ?, quota_buckets = ?,
		models = ?, updated_at = ?
		WHERE id = ?`

	_, err = db.conn.ExecContext(ctx, query,
		acc.DisplayName, acc.AvatarURL, acc.AvatarCached, acc.Status,
		acc.Label, acc.QuotaPercent, acc.IsForbidden, acc.IsDisabled,
		acc.Tier, acc.StatusReason, acc.StatusDetails, acc.QuotaBuckets,
		acc.Models, acc.UpdatedAt, acc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return acc, nil
}

// DeleteAccount removes an account.
func (db *DB) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetAvatarCached flips the avatar_cached flag.
func (db *DB) SetAvatarCached(ctx context.Context, id uuid.UUID, cached bool) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET avatar_cached = ?, updated_at = ? WHERE id = ?`,
		cached, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set avatar_cached: %w", err)
	}
	return nil
}

// TouchAccountSync records a completed account sync.
func (db *DB) TouchAccountSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET last_sync_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch account sync: %w", err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	acc := &models.Account{}
	var lastSync sql.NullTime
	err := row.Scan(
		&acc.ID, &acc.Email, &acc.DisplayName, &acc.AvatarURL, &acc.AvatarCached,
		&acc.Provider, &acc.Status, &acc.Label, &acc.QuotaPercent, &acc.IsForbidden,
		&acc.IsDisabled, &acc.Tier, &acc.StatusReason, &acc.StatusDetails,
		&acc.QuotaBuckets, &acc.Models, &acc.CreatedAt, &acc.UpdatedAt, &lastSync,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if lastSync.Valid {
		acc.LastSyncAt = &lastSync.Time
	}
	return acc, nil
}

func scanAccountRows(rows *sql.Rows) (*models.Account, error) {
	acc := &models.Account{}
	var lastSync sql.NullTime
	err := rows.Scan(
		&acc.ID, &acc.Email, &acc.DisplayName, &acc.AvatarURL, &acc.AvatarCached,
		&acc.Provider, &acc.Status, &acc.Label, &acc.QuotaPercent, &acc.IsForbidden,
		&acc.IsDisabled, &acc.Tier, &acc.StatusReason, &acc.StatusDetails,
		&acc.QuotaBuckets, &acc.Models, &acc.CreatedAt, &acc.UpdatedAt, &lastSync,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if lastSync.Valid {
		acc.LastSyncAt = &lastSync.Time
	}
	return acc, nil
}
