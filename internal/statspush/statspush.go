// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package statspush composes dashboard statistics and broadcasts them to
// WebSocket subscribers on a fixed interval, so the UI refreshes without
// polling /api/dashboard/stats.
package statspush

import (
	"context"
	"time"

	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
)

// recentEventLimit caps the event list embedded in each snapshot.
const recentEventLimit = 10

// Store supplies the persisted aggregates a snapshot is built from.
type Store interface {
	GetAccountCounts(ctx context.Context) (*database.AccountCounts, error)
	GetRequestStats(ctx context.Context) (*database.RequestStats, error)
	ListAccountSummaries(ctx context.Context) ([]models.AccountSummary, error)
	RecentEvents(ctx context.Context, limit int) ([]models.EventItem, error)
}

// StatusProvider supplies the cached egress proxy probe result.
type StatusProvider interface {
	Status(ctx context.Context, force bool) *models.ProxyStatus
}

// Broadcaster pushes snapshots to connected WebSocket clients.
type Broadcaster interface {
	BroadcastStatsUpdate(stats *models.DashboardStats)
	GetClientCount() int
}

// Pusher periodically composes a DashboardStats snapshot and broadcasts it.
type Pusher struct {
	cfg       config.StatsConfig
	store     Store
	proxy     StatusProvider
	broadcast Broadcaster
	startedAt time.Time
}

// New creates a Pusher. startedAt anchors the uptime counter and is shared
// with the /api/dashboard/stats handler.
func New(cfg config.StatsConfig, store Store, proxy StatusProvider, broadcast Broadcaster, startedAt time.Time) *Pusher {
	return &Pusher{
		cfg:       cfg,
		store:     store,
		proxy:     proxy,
		broadcast: broadcast,
		startedAt: startedAt,
	}
}

// Compose builds one snapshot. Partial failures degrade the snapshot rather
// than failing it: a section that cannot be read is left at its zero value.
func (p *Pusher) Compose(ctx context.Context) *models.DashboardStats {
	stats := &models.DashboardStats{
		Accounts:             []models.AccountSummary{},
		RecentEvents:         []models.EventItem{},
		BackendUptimeSeconds: time.Since(p.startedAt).Seconds(),
	}

	if counts, err := p.store.GetAccountCounts(ctx); err != nil {
		logging.Warn().Err(err).Msg("stats snapshot: account counts unavailable")
	} else {
		stats.TotalAccounts = counts.Total
		stats.ActiveAccounts = counts.Active
		stats.ForbiddenAccounts = counts.Forbidden
	}

	if req, err := p.store.GetRequestStats(ctx); err != nil {
		logging.Warn().Err(err).Msg("stats snapshot: request stats unavailable")
	} else {
		stats.TotalRequests = req.TotalRequests
		stats.RequestsToday = req.RequestsToday
		stats.SuccessRate = req.SuccessRate
		stats.AvgLatencyMS = req.AvgLatencyMS
	}

	if summaries, err := p.store.ListAccountSummaries(ctx); err != nil {
		logging.Warn().Err(err).Msg("stats snapshot: account summaries unavailable")
	} else {
		stats.Accounts = summaries
	}

	if events, err := p.store.RecentEvents(ctx, recentEventLimit); err != nil {
		logging.Warn().Err(err).Msg("stats snapshot: recent events unavailable")
	} else {
		stats.RecentEvents = events
	}

	if p.proxy != nil {
		status := p.proxy.Status(ctx, false)
		stats.ProxyEnabled = status.Enabled
		if status.Enabled && !status.CheckedAt.IsZero() {
			connected := status.Connected
			stats.ProxyConnected = &connected
			stats.ProxyLatencyMS = status.LatencyMS
			if status.IP != "" {
				ip := status.IP
				stats.ProxyIP = &ip
			}
		}
	}

	return stats
}

// RunWithContext broadcasts snapshots on the configured interval until the
// context is canceled. Snapshots are skipped while nobody is connected.
func (p *Pusher) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "statspush").Msg("stats broadcaster stopped")
			return ctx.Err()
		case <-ticker.C:
			if p.broadcast.GetClientCount() == 0 {
				continue
			}
			p.broadcast.BroadcastStatsUpdate(p.Compose(ctx))
		}
	}
}
