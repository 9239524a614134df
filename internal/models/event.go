// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import (
	"time"

	"github.com/google/uuid"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelSuccess = "success"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Well-known event types. Types are dotted "<subject>.<verb>" strings;
// this list is not exhaustive.
const (
	EventSystemStart      = "system.start"
	EventSystemStop       = "system.stop"
	EventAccountCreate    = "account.create"
	EventAccountUpdate    = "account.update"
	EventAccountDelete    = "account.delete"
	EventAccountImport    = "account.import"
	EventProxyStatusUp    = "proxy.up"
	EventProxyStatusDown  = "proxy.down"
	EventSettingsUpdate   = "settings.update"
	EventTokenCreate      = "token.create"
	EventTokenRegenerate  = "token.regenerate"
	EventMappingReordered = "mapping.reorder"
)

// Event is a business-level audit entry, persisted and pushed to WebSocket
// subscribers as an "event" message.
type Event struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Level     string     `json:"level"`
	Message   string     `json:"message"`
	Details   string     `json:"details,omitempty"` // JSON blob
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
