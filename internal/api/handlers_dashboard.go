// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"net/http"
)

// DashboardStats returns the aggregated dashboard snapshot. The same
// composition feeds the periodic stats_update broadcast.
func (s *Server) DashboardStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)
	rw.Success(s.stats.Compose(r.Context()))
}
