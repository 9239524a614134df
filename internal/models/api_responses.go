// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints, for both successes and errors.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"total": 12, "accounts": [...]},
//	  "metadata": {
//	    "timestamp": "2026-08-27T12:00:00Z",
//	    "query_time_ms": 4
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "invalid page_size parameter",
//	    "details": {"field": "page_size"}
//	  },
//	  "metadata": {"timestamp": "2026-08-27T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability: server timestamp,
// database query time, and whether the response was served from cache.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is the structured error payload.
//
// Common codes: VALIDATION_ERROR, DATABASE_ERROR, NOT_FOUND, CONFLICT,
// RATE_LIMIT_EXCEEDED, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
