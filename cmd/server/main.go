// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package main is the entry point for the NullGravity backend.
//
// NullGravity is a local-first management service for pools of AI provider
// accounts: it stores accounts, model mappings, API tokens, and settings in
// an embedded DuckDB database, caches account avatars in BadgerDB, monitors
// outbound proxy connectivity, and pushes live updates to the desktop shell
// over WebSocket.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (defaults, config file, env)
//  2. Logging: zerolog, configured from the loaded settings
//  3. Database: embedded DuckDB with schema migration
//  4. Avatar cache: BadgerDB blob store
//  5. Proxy monitor: armed from the proxy_url/proxy_enabled settings
//  6. Supervisor tree: hub, monitor, stats pusher, HTTP server (suture)
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP server drains
// in-flight requests (10s timeout), the hub closes its clients, and the
// database is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nullgravity/nullgravity/internal/api"
	"github.com/nullgravity/nullgravity/internal/avatar"
	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/logbuf"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
	"github.com/nullgravity/nullgravity/internal/proxycheck"
	"github.com/nullgravity/nullgravity/internal/statspush"
	"github.com/nullgravity/nullgravity/internal/supervisor"
	ws "github.com/nullgravity/nullgravity/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	startedAt := time.Now()
	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("data_dir", cfg.Server.DataDir).
		Msg("Starting NullGravity")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	avatars, err := avatar.New(cfg.Avatars)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing database")
		}
		logging.Fatal().Err(err).Msg("Failed to open avatar cache")
	}
	defer func() {
		if err := avatars.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing avatar cache")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub()
	proxyLogs := logbuf.New(cfg.ProxyLog.MaxEntries)
	monitor := proxycheck.New(cfg.EgressProxy, hub, db)
	armProxyMonitor(ctx, db, monitor)

	pusher := statspush.New(cfg.Stats, db, monitor, hub, startedAt)

	server := api.NewServer(cfg, db, hub, monitor, avatars, proxyLogs, pusher, version, startedAt)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(supervisor.NewRunnerService(hub, "websocket-hub"))
	tree.AddMessagingService(supervisor.NewRunnerService(monitor, "proxy-monitor"))
	tree.AddMessagingService(supervisor.NewRunnerService(pusher, "stats-pusher"))
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("Supervisor tree assembled")

	recordStartEvent(ctx, db)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("NullGravity stopped gracefully")
}

// armProxyMonitor points the monitor at the proxy configured in app
// settings. Settings are the source of truth so the UI can change the proxy
// at runtime; missing settings leave the monitor disabled.
func armProxyMonitor(ctx context.Context, db *database.DB, monitor *proxycheck.Monitor) {
	proxyURL, _, err := db.GetSetting(ctx, "proxy_url")
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read proxy_url setting")
		return
	}
	enabled, _, err := db.GetSetting(ctx, "proxy_enabled")
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read proxy_enabled setting")
		return
	}
	monitor.SetProxy(proxyURL, enabled == "true")
	if enabled == "true" {
		logging.Info().Str("proxy_url", proxyURL).Msg("Proxy monitoring enabled")
	}
}

func recordStartEvent(ctx context.Context, db *database.DB) {
	evt := &models.Event{
		Type:    "system.start",
		Level:   models.EventLevelInfo,
		Message: fmt.Sprintf("NullGravity %s started", version),
	}
	if err := db.InsertEvent(ctx, evt); err != nil {
		logging.Warn().Err(err).Msg("Failed to record start event")
	}
}
