// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package proxycheck monitors the configured egress HTTP proxy: a
// fixed-interval connectivity probe plus an exit IP lookup, with results
// cached for /api/settings/proxy/status and pushed as proxy_status
// messages.
package proxycheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/metrics"
	"github.com/nullgravity/nullgravity/internal/models"
)

// Broadcaster pushes probe results to WebSocket subscribers.
type Broadcaster interface {
	BroadcastProxyStatus(status *models.ProxyStatus)
}

// EventSink records connectivity transitions as business events.
type EventSink interface {
	InsertEvent(ctx context.Context, evt *models.Event) error
}

// ipProvider is one exit-IP lookup endpoint with its field mapping.
type ipProvider struct {
	url   string
	parse func(map[string]interface{}) ipInfo
}

type ipInfo struct {
	IP      string
	City    string
	Region  string
	Country string
	Org     string
}

// ipProviders is the fallback chain for exit IP lookups.
var ipProviders = []ipProvider{
	{
		url: "https://ipinfo.io/json",
		parse: func(d map[string]interface{}) ipInfo {
			return ipInfo{
				IP: str(d["ip"]), City: str(d["city"]), Region: str(d["region"]),
				Country: str(d["country"]), Org: str(d["org"]),
			}
		},
	},
	{
		url: "http://ip-api.com/json/?fields=query,city,regionName,country,isp",
		parse: func(d map[string]interface{}) ipInfo {
			return ipInfo{
				IP: str(d["query"]), City: str(d["city"]), Region: str(d["regionName"]),
				Country: str(d["country"]), Org: str(d["isp"]),
			}
		},
	},
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Monitor probes the egress proxy on a fixed interval. The probe runs
// through a circuit breaker so a dead proxy is not hammered every tick.
type Monitor struct {
	cfg       config.EgressProxyConfig
	broadcast Broadcaster
	events    EventSink
	breaker   *gobreaker.CircuitBreaker[*models.ProxyStatus]
	refresh   chan struct{}

	mu       sync.RWMutex
	proxyURL string
	enabled  bool
	status   models.ProxyStatus
}

// New creates a Monitor. SetProxy arms it with the stored settings; until
// then probes are no-ops.
func New(cfg config.EgressProxyConfig, broadcast Broadcaster, events EventSink) *Monitor {
	m := &Monitor{
		cfg:       cfg,
		broadcast: broadcast,
		events:    events,
		refresh:   make(chan struct{}, 1),
	}
	m.breaker = gobreaker.NewCircuitBreaker[*models.ProxyStatus](gobreaker.Settings{
		Name:    "egress-proxy-probe",
		Timeout: 2 * cfg.CheckInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("component", "proxycheck").
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("probe circuit breaker state changed")
		},
	})
	return m
}

// SetProxy re-arms the monitor with a new proxy URL and enabled flag, and
// schedules an immediate probe. Called from the settings side-effects.
func (m *Monitor) SetProxy(rawURL string, enabled bool) {
	m.mu.Lock()
	m.proxyURL = normalizeProxyURL(rawURL)
	m.enabled = enabled && m.proxyURL != ""
	if !m.enabled {
		m.status = models.ProxyStatus{Enabled: false, Connected: false, CheckedAt: time.Now().UTC()}
	}
	m.mu.Unlock()

	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

func normalizeProxyURL(raw string) string {
	raw = trimTrailingSlash(raw)
	if raw == "" {
		return ""
	}
	if _, err := url.Parse(raw); err != nil {
		return ""
	}
	return raw
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Status returns the cached probe result, or runs a fresh probe when
// force is set or nothing is cached yet.
func (m *Monitor) Status(ctx context.Context, force bool) *models.ProxyStatus {
	m.mu.RLock()
	enabled := m.enabled
	cached := m.status
	m.mu.RUnlock()

	if !enabled {
		return &models.ProxyStatus{Enabled: false, Connected: false}
	}
	if !force && !cached.CheckedAt.IsZero() {
		out := cached
		return &out
	}
	return m.probeAndRecord(ctx)
}

// RunWithContext probes on the configured interval until the context is
// canceled. Designed for suture supervision.
func (m *Monitor) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "proxycheck").Msg("egress proxy monitor stopped")
			return ctx.Err()
		case <-m.refresh:
			m.probeAndRecord(ctx)
		case <-ticker.C:
			m.probeAndRecord(ctx)
		}
	}
}

// probeAndRecord runs one probe, caches the result, and reports
// transitions (broadcast + event) when connectivity flips.
func (m *Monitor) probeAndRecord(ctx context.Context) *models.ProxyStatus {
	m.mu.RLock()
	enabled := m.enabled
	proxyURL := m.proxyURL
	prev := m.status
	m.mu.RUnlock()

	if !enabled {
		return &models.ProxyStatus{Enabled: false, Connected: false}
	}

	status, err := m.breaker.Execute(func() (*models.ProxyStatus, error) {
		s := m.probe(ctx, proxyURL)
		if !s.Connected {
			return s, fmt.Errorf("proxy unreachable: %s", s.Error)
		}
		return s, nil
	})
	if err != nil {
		if status == nil {
			// Breaker open: synthesize a disconnected status.
			metrics.RecordProxyProbe("breaker_open", 0)
			status = &models.ProxyStatus{
				Enabled:   true,
				Connected: false,
				Error:     err.Error(),
				CheckedAt: time.Now().UTC(),
			}
		} else {
			metrics.RecordProxyProbe("failed", 0)
		}
	} else if status.LatencyMS != nil {
		metrics.RecordProxyProbe("ok", time.Duration(*status.LatencyMS*float64(time.Millisecond)))
	}

	m.mu.Lock()
	m.status = *status
	m.mu.Unlock()

	if prev.CheckedAt.IsZero() || prev.Connected != status.Connected {
		m.reportTransition(ctx, status)
	}
	return status
}

func (m *Monitor) reportTransition(ctx context.Context, status *models.ProxyStatus) {
	if m.broadcast != nil {
		m.broadcast.BroadcastProxyStatus(status)
	}
	if m.events == nil {
		return
	}

	evt := &models.Event{
		Type:    models.EventProxyStatusUp,
		Level:   models.EventLevelSuccess,
		Message: "Egress proxy connected",
	}
	if !status.Connected {
		evt.Type = models.EventProxyStatusDown
		evt.Level = models.EventLevelWarning
		evt.Message = "Egress proxy unreachable"
		if status.Error != "" {
			details, _ := json.Marshal(map[string]string{"error": status.Error})
			evt.Details = string(details)
		}
	}
	if err := m.events.InsertEvent(ctx, evt); err != nil {
		logging.Warn().Err(err).Msg("failed to record proxy transition event")
	}
}

// probe checks connectivity through the proxy, then attempts an exit IP
// lookup. The IP lookup can fail independently: Connected stays true and
// IPError carries the reason.
func (m *Monitor) probe(ctx context.Context, proxyURL string) *models.ProxyStatus {
	status := &models.ProxyStatus{Enabled: true, CheckedAt: time.Now().UTC()}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		status.Error = fmt.Sprintf("invalid proxy url: %v", err)
		return status
	}

	client := &http.Client{
		Timeout: m.cfg.ProbeTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(parsed),
		},
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.ProbeURL, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	_ = resp.Body.Close()

	latency := float64(time.Since(start).Milliseconds())
	status.Connected = true
	status.LatencyMS = &latency

	info, err := m.lookupExitIP(ctx, client)
	if err != nil {
		status.IPError = err.Error()
		return status
	}
	status.IP = info.IP
	status.City = info.City
	status.Region = info.Region
	status.Country = info.Country
	status.Org = info.Org
	return status
}

// lookupExitIP walks the provider chain until one answers.
func (m *Monitor) lookupExitIP(ctx context.Context, client *http.Client) (*ipInfo, error) {
	var lastErr error
	for _, provider := range ipProviders {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.url, nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		var data map[string]interface{}
		err = json.NewDecoder(resp.Body).Decode(&data)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		info := provider.parse(data)
		if info.IP != "" {
			return &info, nil
		}
		lastErr = fmt.Errorf("provider %s returned no ip", provider.url)
	}
	return nil, fmt.Errorf("all ip providers failed: %w", lastErr)
}
