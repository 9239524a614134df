// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nullgravity/nullgravity/internal/avatar"
	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/logbuf"
	"github.com/nullgravity/nullgravity/internal/middleware"
	"github.com/nullgravity/nullgravity/internal/proxycheck"
	"github.com/nullgravity/nullgravity/internal/statspush"
	"github.com/nullgravity/nullgravity/internal/websocket"
)

// Server holds the dependencies the HTTP handlers operate on.
type Server struct {
	cfg       *config.Config
	db        *database.DB
	hub       *websocket.Hub
	monitor   *proxycheck.Monitor
	avatars   *avatar.Store
	proxyLogs *logbuf.Buffer
	stats     *statspush.Pusher
	version   string
	startedAt time.Time
}

// NewServer creates the handler set. startedAt anchors health and dashboard
// uptime reporting.
func NewServer(
	cfg *config.Config,
	db *database.DB,
	hub *websocket.Hub,
	monitor *proxycheck.Monitor,
	avatars *avatar.Store,
	proxyLogs *logbuf.Buffer,
	stats *statspush.Pusher,
	version string,
	startedAt time.Time,
) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		hub:       hub,
		monitor:   monitor,
		avatars:   avatars,
		proxyLogs: proxyLogs,
		stats:     stats,
		version:   version,
		startedAt: startedAt,
	}
}

// Routes builds the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !s.cfg.Security.RateLimitDisabled {
		r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))
	}
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.RequestLogger(s.db, s.hub, s.cfg.RequestLog.MaxBodyBytes))

	r.Get("/api/health", s.Health)
	r.Get("/api/ws", s.WebSocket)

	r.Route("/api/accounts", func(r chi.Router) {
		r.Get("/", s.AccountList)
		r.Post("/", s.AccountCreate)
		r.Post("/export", s.AccountExport)
		r.Post("/import", s.AccountImport)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.AccountGet)
			r.Patch("/", s.AccountUpdate)
			r.Delete("/", s.AccountDelete)
			r.Get("/avatar", s.AccountAvatar)
		})
	})

	r.Route("/api/logs", func(r chi.Router) {
		r.Get("/", s.RequestLogList)
		r.Delete("/", s.RequestLogClear)
	})

	r.Route("/api/model-mappings", func(r chi.Router) {
		r.Get("/", s.MappingList)
		r.Post("/", s.MappingCreate)
		r.Put("/reorder", s.MappingReorder)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", s.MappingUpdate)
			r.Delete("/", s.MappingDelete)
		})
	})

	r.Route("/api/api-tokens", func(r chi.Router) {
		r.Get("/", s.TokenList)
		r.Post("/", s.TokenCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.TokenDelete)
			r.Patch("/toggle", s.TokenToggle)
			r.Post("/regenerate", s.TokenRegenerate)
		})
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", s.SettingsGet)
		r.Put("/", s.SettingsUpdate)
		r.Get("/proxy/status", s.ProxyStatus)
		r.Get("/storage/stats", s.StorageStats)
		r.Post("/storage/clear", s.StorageClear)
	})

	r.Get("/api/dashboard/stats", s.DashboardStats)

	r.Route("/api/api-proxy", func(r chi.Router) {
		r.Get("/status", s.APIProxyStatus)
		r.Get("/logs", s.APIProxyLogs)
		r.Delete("/logs", s.APIProxyLogsClear)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
