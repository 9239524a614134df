// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package client

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
)

// StatusPoller keeps a dashboard snapshot current: a fixed-interval REST
// poll, with pushed stats_update messages merged in between polls.
// sync_started/sync_completed markers toggle an in-sync flag so the UI can
// show sync activity without waiting for the next poll.
type StatusPoller struct {
	client   *Client
	interval time.Duration

	mu       sync.RWMutex
	stats    *models.DashboardStats
	inSync   map[string]struct{} // account ids currently syncing
	lastPoll time.Time
}

// NewStatusPoller creates a poller. Non-positive intervals default to 15s.
func NewStatusPoller(c *Client, interval time.Duration) *StatusPoller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &StatusPoller{
		client:   c,
		interval: interval,
		inSync:   make(map[string]struct{}),
	}
}

// Attach subscribes the poller to pushed updates on the socket.
func (p *StatusPoller) Attach(s *Socket) {
	s.Subscribe("stats_update", func(payload json.RawMessage) {
		var stats models.DashboardStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			logging.Debug().Err(err).Msg("status poller: malformed stats payload")
			return
		}
		p.mu.Lock()
		p.stats = &stats
		p.mu.Unlock()
	})

	s.Subscribe("sync_started", func(payload json.RawMessage) {
		if id := accountIDFromMarker(payload); id != "" {
			p.mu.Lock()
			p.inSync[id] = struct{}{}
			p.mu.Unlock()
		}
	})

	s.Subscribe("sync_completed", func(payload json.RawMessage) {
		if id := accountIDFromMarker(payload); id != "" {
			p.mu.Lock()
			delete(p.inSync, id)
			p.mu.Unlock()
		}
	})
}

func accountIDFromMarker(payload json.RawMessage) string {
	var marker struct {
		AccountID string `json:"account_id"`
	}
	if err := json.Unmarshal(payload, &marker); err != nil {
		return ""
	}
	return marker.AccountID
}

// Run polls until the context is canceled. One poll runs immediately.
func (p *StatusPoller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *StatusPoller) poll(ctx context.Context) {
	stats, err := p.client.DashboardStats(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("status poll failed")
		return
	}
	p.mu.Lock()
	p.stats = stats
	p.lastPoll = time.Now()
	p.mu.Unlock()
}

// Current returns the latest snapshot, or nil before the first successful
// poll or push.
func (p *StatusPoller) Current() *models.DashboardStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stats == nil {
		return nil
	}
	out := *p.stats
	return &out
}

// Syncing reports whether any account sync is currently in flight.
func (p *StatusPoller) Syncing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.inSync) > 0
}

// SyncingAccount reports whether a specific account is currently syncing.
func (p *StatusPoller) SyncingAccount(accountID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.inSync[accountID]
	return ok
}
