// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"net/http"
	"time"
)

// healthResponse is the /api/health payload.
type healthResponse struct {
	Status        string  `json:"status"` // "healthy" or "degraded"
	Version       string  `json:"version"`
	Database      string  `json:"database"` // "up" or "down"
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health reports service liveness and database connectivity. The endpoint
// answers 200 even when the database is down so the UI can show a degraded
// state instead of a connection error.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	resp := healthResponse{
		Status:        "healthy",
		Version:       s.version,
		Database:      "up",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if err := s.db.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "down"
	}
	rw.Success(resp)
}
