// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"net/http"
)

// RequestLogList returns one page of management request logs, newest first.
// The search parameter matches path and method, or a numeric status code.
func (s *Server) RequestLogList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	page, pageSize, err := s.pagination(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	search := r.URL.Query().Get("search")

	logs, err := s.db.ListRequestLogs(r.Context(), page, pageSize, search)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(logs)
}

// RequestLogClear deletes all persisted request logs.
func (s *Server) RequestLogClear(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	if err := s.db.ClearRequestLogs(r.Context()); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]string{"cleared": "request_logs"})
}
