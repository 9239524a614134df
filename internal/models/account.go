// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package models defines the data structures shared across the NullGravity
// service: accounts, model mappings, API tokens, request logs, events,
// settings, and the standard API response envelope.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Account status values. An account moves between these as the upstream
// provider reports quota and error conditions.
const (
	AccountStatusActive      = "active"
	AccountStatusRateLimited = "rate_limited"
	AccountStatusExhausted   = "exhausted"
	AccountStatusError       = "error"
)

// Account represents a managed upstream AI provider account.
//
// Key fields:
//   - Status: lifecycle state ("active", "rate_limited", "exhausted", "error")
//   - QuotaPercent: remaining quota as reported by the last sync (0-100)
//   - QuotaBuckets: per-model quota windows, raw JSON from the provider
//   - IsForbidden/IsDisabled: forbidden is set by the provider, disabled by
//     the operator; both exclude the account from use
//   - AvatarCached: whether the avatar image is present in the local cache
type Account struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	AvatarCached  bool       `json:"avatar_cached"`
	Provider      string     `json:"provider"`
	Status        string     `json:"status"`
	Label         string     `json:"label,omitempty"`
	QuotaPercent  float64    `json:"quota_percent"`
	IsForbidden   bool       `json:"is_forbidden"`
	IsDisabled    bool       `json:"is_disabled"`
	Tier          string     `json:"tier,omitempty"`
	StatusReason  string     `json:"status_reason,omitempty"`
	StatusDetails string     `json:"status_details,omitempty"` // JSON blob
	QuotaBuckets  string     `json:"quota_buckets,omitempty"`  // JSON blob
	Models        string     `json:"models,omitempty"`         // JSON array of model ids
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// AccountCreate is the payload for creating an account.
type AccountCreate struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
	Provider    string `json:"provider"`
	Label       string `json:"label"`
	Tier        string `json:"tier"`
}

// AccountUpdate is the payload for partial account updates. Nil fields are
// left untouched.
type AccountUpdate struct {
	DisplayName   *string  `json:"display_name,omitempty"`
	AvatarURL     *string  `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Status        *string  `json:"status,omitempty" validate:"omitempty,oneof=active rate_limited exhausted error"`
	Label         *string  `json:"label,omitempty"`
	QuotaPercent  *float64 `json:"quota_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsForbidden   *bool    `json:"is_forbidden,omitempty"`
	IsDisabled    *bool    `json:"is_disabled,omitempty"`
	Tier          *string  `json:"tier,omitempty"`
	StatusReason  *string  `json:"status_reason,omitempty"`
	StatusDetails *string  `json:"status_details,omitempty"`
	QuotaBuckets  *string  `json:"quota_buckets,omitempty"`
	Models        *string  `json:"models,omitempty"`
}

// AccountExport wraps accounts for the import/export endpoints.
type AccountExport struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Accounts   []Account `json:"accounts"`
}

// ImportResult reports the outcome of an account import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
