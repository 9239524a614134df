// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"net/http"

	"github.com/nullgravity/nullgravity/internal/models"
)

// APIProxyStatus reports the protocol proxy pool surface. The engine itself
// runs outside this service, so running is false and the scheduling fields
// are reported state: schedule_mode comes from settings verbatim.
func (s *Server) APIProxyStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	scheduleMode, _, err := s.db.GetSetting(r.Context(), "schedule_mode")
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	accounts, err := s.db.GetAccountCounts(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(models.APIProxyStatus{
		Running:       false,
		Port:          s.cfg.Server.Port,
		TotalRequests: int64(s.proxyLogs.Count()),
		PoolSize:      accounts.Total,
		PoolAvailable: accounts.Active,
		ScheduleMode:  scheduleMode,
	})
}

// APIProxyLogs returns a window of the in-memory proxy log ring buffer,
// newest first.
func (s *Server) APIProxyLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if limit < 1 || offset < 0 {
		rw.BadRequest("limit must be positive and offset non-negative")
		return
	}

	rw.Success(models.ProxyLogPage{
		Items: s.proxyLogs.Get(limit, offset),
		Total: s.proxyLogs.Count(),
	})
}

// APIProxyLogsClear empties the ring buffer.
func (s *Server) APIProxyLogsClear(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	s.proxyLogs.Clear()
	rw.Success(map[string]string{"cleared": "proxy_logs"})
}
