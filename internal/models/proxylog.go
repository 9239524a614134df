// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import "time"

// ProxyLogEntry is one protocol proxy request, held in the in-memory ring
// buffer rather than the database. IDs are monotonic per process.
type ProxyLogEntry struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	APIFormat     string    `json:"api_format"` // "openai" or "anthropic"
	Model         string    `json:"model"`
	OriginalModel string    `json:"original_model,omitempty"` // before mapping
	Stream        bool      `json:"stream"`
	StatusCode    int       `json:"status_code"`
	DurationMS    float64   `json:"duration_ms"`
	AccountEmail  string    `json:"account_email,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	InputTokens   int64     `json:"input_tokens"`
	OutputTokens  int64     `json:"output_tokens"`
	Error         string    `json:"error,omitempty"`
	ClientIP      string    `json:"client_ip,omitempty"`
}

// ProxyLogPage is one window of proxy log entries, newest first.
type ProxyLogPage struct {
	Items []ProxyLogEntry `json:"items"`
	Total int             `json:"total"`
}

// APIProxyStatus reports the protocol proxy's pool state. The engine itself
// is external to this service; these fields are reported state.
type APIProxyStatus struct {
	Running             bool       `json:"running"`
	Port                int        `json:"port"`
	Upstream            string     `json:"upstream,omitempty"`
	TotalRequests       int64      `json:"total_requests"`
	TotalRotations      int64      `json:"total_rotations"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CurrentAccountEmail string     `json:"current_account_email,omitempty"`
	CurrentAccountID    string     `json:"current_account_id,omitempty"`
	PoolSize            int        `json:"pool_size"`
	PoolAvailable       int        `json:"pool_available"`
	ScheduleMode        string     `json:"schedule_mode,omitempty"`
	PoolCooldown        int        `json:"pool_cooldown,omitempty"`
}
