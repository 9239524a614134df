// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package statspush

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type fakeStore struct {
	counts     *database.AccountCounts
	reqStats   *database.RequestStats
	summaries  []models.AccountSummary
	events     []models.EventItem
	countsErr  error
	statsErr   error
	summaryErr error
	eventsErr  error
}

func (s *fakeStore) GetAccountCounts(context.Context) (*database.AccountCounts, error) {
	return s.counts, s.countsErr
}

func (s *fakeStore) GetRequestStats(context.Context) (*database.RequestStats, error) {
	return s.reqStats, s.statsErr
}

func (s *fakeStore) ListAccountSummaries(context.Context) ([]models.AccountSummary, error) {
	return s.summaries, s.summaryErr
}

func (s *fakeStore) RecentEvents(context.Context, int) ([]models.EventItem, error) {
	return s.events, s.eventsErr
}

type fakeProxy struct {
	status models.ProxyStatus
}

func (p *fakeProxy) Status(context.Context, bool) *models.ProxyStatus {
	out := p.status
	return &out
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	clients int
	updates []*models.DashboardStats
}

func (b *fakeBroadcaster) BroadcastStatsUpdate(stats *models.DashboardStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, stats)
}

func (b *fakeBroadcaster) GetClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clients
}

func (b *fakeBroadcaster) updateCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.updates)
}

func fullStore() *fakeStore {
	rate := 97.5
	latency := 142.3
	return &fakeStore{
		counts: &database.AccountCounts{Total: 5, Active: 3, Forbidden: 1},
		reqStats: &database.RequestStats{
			TotalRequests: 1200,
			RequestsToday: 80,
			SuccessRate:   &rate,
			AvgLatencyMS:  &latency,
		},
		summaries: []models.AccountSummary{{Email: "a@example.com", QuotaPercent: 42}},
		events:    []models.EventItem{{Type: "account.created", Message: "created"}},
	}
}

func TestComposeFullSnapshot(t *testing.T) {
	probeLatency := 55.0
	proxy := &fakeProxy{status: models.ProxyStatus{
		Enabled:   true,
		Connected: true,
		LatencyMS: &probeLatency,
		IP:        "203.0.113.9",
		CheckedAt: time.Now().UTC(),
	}}
	p := New(config.StatsConfig{BroadcastInterval: time.Hour}, fullStore(), proxy, nil,
		time.Now().Add(-time.Minute))

	stats := p.Compose(context.Background())
	if stats.TotalAccounts != 5 || stats.ActiveAccounts != 3 || stats.ForbiddenAccounts != 1 {
		t.Errorf("unexpected account counts: %+v", stats)
	}
	if stats.TotalRequests != 1200 || stats.RequestsToday != 80 {
		t.Errorf("unexpected request stats: %+v", stats)
	}
	if stats.SuccessRate == nil || *stats.SuccessRate != 97.5 {
		t.Errorf("unexpected success rate: %v", stats.SuccessRate)
	}
	if !stats.ProxyEnabled || stats.ProxyConnected == nil || !*stats.ProxyConnected {
		t.Errorf("unexpected proxy fields: %+v", stats)
	}
	if stats.ProxyIP == nil || *stats.ProxyIP != "203.0.113.9" {
		t.Errorf("unexpected proxy ip: %v", stats.ProxyIP)
	}
	if len(stats.Accounts) != 1 || len(stats.RecentEvents) != 1 {
		t.Errorf("expected summaries and events, got %+v", stats)
	}
	if stats.BackendUptimeSeconds < 59 {
		t.Errorf("uptime too small: %f", stats.BackendUptimeSeconds)
	}
}

func TestComposeDegradesOnStoreErrors(t *testing.T) {
	store := fullStore()
	store.countsErr = errors.New("db gone")
	store.eventsErr = errors.New("db gone")
	p := New(config.StatsConfig{BroadcastInterval: time.Hour}, store, nil, nil, time.Now())

	stats := p.Compose(context.Background())
	if stats.TotalAccounts != 0 {
		t.Errorf("failed section must stay zero, got %d", stats.TotalAccounts)
	}
	if stats.RecentEvents == nil || len(stats.RecentEvents) != 0 {
		t.Errorf("events must stay an empty slice, got %v", stats.RecentEvents)
	}
	// Healthy sections still populate.
	if stats.TotalRequests != 1200 || len(stats.Accounts) != 1 {
		t.Errorf("healthy sections missing: %+v", stats)
	}
}

func TestComposeProxyNotYetProbed(t *testing.T) {
	proxy := &fakeProxy{status: models.ProxyStatus{Enabled: true}}
	p := New(config.StatsConfig{BroadcastInterval: time.Hour}, fullStore(), proxy, nil, time.Now())

	stats := p.Compose(context.Background())
	if !stats.ProxyEnabled {
		t.Error("expected proxy enabled")
	}
	if stats.ProxyConnected != nil {
		t.Errorf("connectivity must be null before the first probe, got %v", *stats.ProxyConnected)
	}
}

func TestRunBroadcastsOnInterval(t *testing.T) {
	bc := &fakeBroadcaster{clients: 1}
	p := New(config.StatsConfig{BroadcastInterval: 20 * time.Millisecond}, fullStore(), nil, bc, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunWithContext(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for bc.updateCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if bc.updateCount() < 2 {
		t.Errorf("expected at least 2 broadcasts, got %d", bc.updateCount())
	}
}

func TestRunSkipsWithoutClients(t *testing.T) {
	bc := &fakeBroadcaster{clients: 0}
	p := New(config.StatsConfig{BroadcastInterval: 10 * time.Millisecond}, fullStore(), nil, bc, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = p.RunWithContext(ctx)

	if n := bc.updateCount(); n != 0 {
		t.Errorf("expected no broadcasts without clients, got %d", n)
	}
}
