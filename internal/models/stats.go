// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import (
	"time"

	"github.com/google/uuid"
)

// DashboardStats is the aggregated snapshot served by /api/dashboard/stats
// and broadcast periodically as a "stats_update" message.
//
// Nullable fields (SuccessRate, AvgLatencyMS, proxy probe results) are
// pointers so that "no data yet" serializes as null rather than zero.
type DashboardStats struct {
	// Account counts
	TotalAccounts     int `json:"total_accounts"`
	ActiveAccounts    int `json:"active_accounts"`
	ForbiddenAccounts int `json:"forbidden_accounts"`

	// Request stats
	TotalRequests int64    `json:"total_requests"`
	RequestsToday int64    `json:"requests_today"`
	SuccessRate   *float64 `json:"success_rate"`    // percent of 2xx responses
	AvgLatencyMS  *float64 `json:"avg_latency_ms"`

	// System
	ProxyEnabled         bool     `json:"proxy_enabled"`
	ProxyConnected       *bool    `json:"proxy_connected"`
	ProxyIP              *string  `json:"proxy_ip"`
	ProxyLatencyMS       *float64 `json:"proxy_latency_ms"`
	BackendUptimeSeconds float64  `json:"backend_uptime_seconds"`

	// Per-account quota summaries
	Accounts []AccountSummary `json:"accounts"`

	// Recent business events, newest first
	RecentEvents []EventItem `json:"recent_events"`
}

// AccountSummary is the dashboard's per-account view.
type AccountSummary struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	AvatarCached bool       `json:"avatar_cached"`
	Provider     string     `json:"provider"`
	Status       string     `json:"status"`
	Tier         string     `json:"tier,omitempty"`
	IsForbidden  bool       `json:"is_forbidden"`
	StatusReason string     `json:"status_reason,omitempty"`
	QuotaPercent float64    `json:"quota_percent"`
	Models       string     `json:"models,omitempty"` // JSON array of model ids
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
}

// EventItem is the dashboard's event view: the persisted event joined with
// the owning account's email and cached-avatar path.
type EventItem struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	Level         string    `json:"level"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	AccountEmail  string    `json:"account_email,omitempty"`
	AccountAvatar string    `json:"account_avatar,omitempty"`
}

// ProxyStatus is the cached result of the last egress proxy probe.
//
// Connected means the proxy answered a connectivity probe; the exit IP
// lookup can fail independently, in which case IPError is set while
// Connected stays true.
type ProxyStatus struct {
	Enabled   bool     `json:"enabled"`
	Connected bool     `json:"connected"`
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	IP        string   `json:"ip,omitempty"`
	City      string   `json:"city,omitempty"`
	Region    string   `json:"region,omitempty"`
	Country   string   `json:"country,omitempty"`
	Org       string   `json:"org,omitempty"`
	Error     string   `json:"error,omitempty"`
	IPError   string   `json:"ip_error,omitempty"`

	CheckedAt time.Time `json:"checked_at,omitempty"`
}
