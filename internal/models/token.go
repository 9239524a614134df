// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import (
	"time"

	"github.com/google/uuid"
)

// APIToken is a client credential for the protocol proxy surface.
// Token values are "sk-" followed by 64 hex characters and are unique.
type APIToken struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Token         string     `json:"token"`
	IsActive      bool       `json:"is_active"`
	TotalRequests int64      `json:"total_requests"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// APITokenCreate is the payload for creating a token. The token value is
// generated server-side.
type APITokenCreate struct {
	Name string `json:"name" validate:"required,max=128"`
}
