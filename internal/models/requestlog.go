// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestLog is a persisted record of one management API request.
// Authorization and cookie headers are redacted before storage, and bodies
// are truncated to the configured cap.
type RequestLog struct {
	ID             int64      `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Method         string     `json:"method"`
	Path           string     `json:"path"`
	StatusCode     int        `json:"status_code"`
	DurationMS     float64    `json:"duration_ms"`
	ClientIP       string     `json:"client_ip"`
	RequestHeaders string     `json:"request_headers,omitempty"` // JSON, redacted
	RequestBody    string     `json:"request_body,omitempty"`
	ResponseBody   string     `json:"response_body,omitempty"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
	AccountID      *uuid.UUID `json:"account_id,omitempty"`
}

// RequestLogPage is one page of request logs with pagination totals.
type RequestLogPage struct {
	Logs     []RequestLog `json:"logs"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
