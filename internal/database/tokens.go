// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/models"
)

// Token errors
var (
	ErrTokenNotFound = errors.New("api token not found")
	ErrTokenInactive = errors.New("api token is inactive")
)

// GenerateTokenValue returns a fresh token value: "sk-" plus 64 hex chars.
func GenerateTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return "sk-" + hex.EncodeToString(buf), nil
}

// ListTokens returns all API tokens, newest first.
func (db *DB) ListTokens(ctx context.Context) ([]models.APIToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, token, is_active, total_requests, last_used_at, created_at
		 FROM api_tokens ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	tokens := []models.APIToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// CreateToken creates a named token with a generated value.
func (db *DB) CreateToken(ctx context.Context, name string) (*models.APIToken, error) {
	value, err := GenerateTokenValue()
	if err != nil {
		return nil, err
	}

	t := &models.APIToken{
		ID:        uuid.New(),
		Name:      name,
		Token:     value,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO api_tokens (id, name, token, is_active, total_requests, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		t.ID, t.Name, t.Token, t.IsActive, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return t, nil
}

// DeleteToken removes a token.
func (db *DB) DeleteToken(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ToggleToken flips a token's active flag and returns the updated token.
func (db *DB) ToggleToken(ctx context.Context, id uuid.UUID) (*models.APIToken, error) {
	t, err := db.getToken(ctx, id)
	if err != nil {
		return nil, err
	}
	t.IsActive = !t.IsActive

	_, err = db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET is_active = ? WHERE id = ?`, t.IsActive, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle token: %w", err)
	}
	return t, nil
}

// RegenerateToken replaces a token's value, keeping name and counters.
func (db *DB) RegenerateToken(ctx context.Context, id uuid.UUID) (*models.APIToken, error) {
	t, err := db.getToken(ctx, id)
	if err != nil {
		return nil, err
	}

	value, err := GenerateTokenValue()
	if err != nil {
		return nil, err
	}
	t.Token = value

	_, err = db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET token = ? WHERE id = ?`, t.Token, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate token: %w", err)
	}
	return t, nil
}

// ValidateToken checks that the given value belongs to an active token,
// increments its request counter, and stamps last_used_at.
func (db *DB) ValidateToken(ctx context.Context, value string) (*models.APIToken, error) {
	t := &models.APIToken{}
	var lastUsed sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, token, is_active, total_requests, last_used_at, created_at
		 FROM api_tokens WHERE token = ?`, value).
		Scan(&t.ID, &t.Name, &t.Token, &t.IsActive, &t.TotalRequests, &lastUsed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}
	if !t.IsActive {
		return nil, ErrTokenInactive
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET total_requests = total_requests + 1, last_used_at = ?
		 WHERE id = ?`, now, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch token: %w", err)
	}
	t.TotalRequests++
	t.LastUsedAt = &now
	return t, nil
}

func (db *DB) getToken(ctx context.Context, id uuid.UUID) (*models.APIToken, error) {
	t := &models.APIToken{}
	var lastUsed sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, token, is_active, total_requests, last_used_at, created_at
		 FROM api_tokens WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Token, &t.IsActive, &t.TotalRequests, &lastUsed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}
	return t, nil
}

func scanToken(rows *sql.Rows) (*models.APIToken, error) {
	t := &models.APIToken{}
	var lastUsed sql.NullTime
	err := rows.Scan(&t.ID, &t.Name, &t.Token, &t.IsActive, &t.TotalRequests, &lastUsed, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}
	return t, nil
}
