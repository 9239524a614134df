// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelMapping rewrites requested model names to upstream targets.
// Pattern supports a trailing "*" wildcard ("claude-3-*"). Mappings are
// evaluated in priority order; lower numbers match first.
type ModelMapping struct {
	ID        uuid.UUID `json:"id"`
	Pattern   string    `json:"pattern"`
	Target    string    `json:"target"`
	IsActive  bool      `json:"is_active"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// ModelMappingCreate is the payload for creating a mapping.
type ModelMappingCreate struct {
	Pattern  string `json:"pattern" validate:"required"`
	Target   string `json:"target" validate:"required"`
	IsActive *bool  `json:"is_active,omitempty"`
	Priority *int   `json:"priority,omitempty" validate:"omitempty,gte=0"`
}

// ModelMappingUpdate is the payload for partial mapping updates.
type ModelMappingUpdate struct {
	Pattern  *string `json:"pattern,omitempty"`
	Target   *string `json:"target,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Priority *int    `json:"priority,omitempty" validate:"omitempty,gte=0"`
}

// MappingOrder is one entry of a reorder request: the mapping and the
// priority it should take.
type MappingOrder struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Priority int       `json:"priority" validate:"gte=0"`
}

// ReorderRequest carries the full new ordering for the mapping list.
type ReorderRequest struct {
	Orders []MappingOrder `json:"orders" validate:"required,min=1,dive"`
}
