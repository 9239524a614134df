// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package metrics provides Prometheus instrumentation for the management
// API, the push hub, the avatar cache, and the egress proxy monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket metrics
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages broadcast",
		},
		[]string{"type"},
	)

	// Egress proxy monitor metrics
	ProxyProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "egress_proxy_probes_total",
			Help: "Total number of egress proxy probes",
		},
		[]string{"result"}, // "ok", "failed", "breaker_open"
	)

	ProxyProbeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "egress_proxy_probe_latency_seconds",
			Help:    "Latency of egress proxy connectivity probes",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Avatar cache metrics
	AvatarCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_cache_hits_total",
			Help: "Total number of avatar cache hits",
		},
	)

	AvatarCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_cache_misses_total",
			Help: "Total number of avatar cache misses",
		},
	)

	AvatarDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_downloads_total",
			Help: "Total number of avatar download attempts",
		},
		[]string{"result"}, // "ok", "failed"
	)

	// Proxy log ring buffer
	ProxyLogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proxy_log_entries",
			Help: "Current number of entries in the proxy log ring buffer",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordProxyProbe records one egress proxy probe outcome.
func RecordProxyProbe(result string, latency time.Duration) {
	ProxyProbesTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		ProxyProbeLatency.Observe(latency.Seconds())
	}
}

// RecordBroadcast counts one hub broadcast by message type.
func RecordBroadcast(messageType string) {
	WSMessagesSent.WithLabelValues(messageType).Inc()
}
