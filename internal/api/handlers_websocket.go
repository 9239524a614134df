// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"net/http"
	"strings"

	gorilla "github.com/gorilla/websocket"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/websocket"
)

// WebSocket upgrades /api/ws connections and hands them to the hub.
// Origin is checked against the configured CORS origins; same-origin and
// originless (non-browser) clients are always allowed.
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(s.hub, conn)
	s.hub.Register <- client
	client.Start()
}

func (s *Server) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	// Same-origin requests carry the listen host as origin.
	return strings.HasSuffix(origin, "//"+r.Host)
}
