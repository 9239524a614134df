// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package config defines the NullGravity service configuration and its
// Koanf-based layered loader.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the NullGravity backend.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	API         APIConfig         `koanf:"api"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	EgressProxy EgressProxyConfig `koanf:"egress_proxy"`
	Avatars     AvatarConfig      `koanf:"avatars"`
	Stats       StatsConfig       `koanf:"stats"`
	RequestLog  RequestLogConfig  `koanf:"request_log"`
	ProxyLog    ProxyLogConfig    `koanf:"proxy_log"`
}

// ServerConfig holds HTTP server settings. The service binds to loopback by
// default: it is the local backend of a desktop shell, not a public API.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
	DataDir string        `koanf:"data_dir"`
}

// DatabaseConfig holds embedded DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// APIConfig holds pagination limits for list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EgressProxyConfig holds settings for the outbound proxy connectivity
// monitor. The proxy URL itself lives in app settings so the UI can change
// it at runtime; these are the probe mechanics.
type EgressProxyConfig struct {
	CheckInterval time.Duration `koanf:"check_interval"`
	ProbeURL      string        `koanf:"probe_url"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`
}

// AvatarConfig holds avatar cache settings.
type AvatarConfig struct {
	Path          string  `koanf:"path"`
	DownloadRate  float64 `koanf:"download_rate"`  // downloads per second
	DownloadBurst int     `koanf:"download_burst"` // token bucket burst
}

// StatsConfig holds the periodic dashboard stats broadcaster settings.
type StatsConfig struct {
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`
}

// RequestLogConfig holds request logging middleware settings.
type RequestLogConfig struct {
	MaxBodyBytes int `koanf:"max_body_bytes"`
}

// ProxyLogConfig holds the in-memory proxy log ring buffer settings.
type ProxyLogConfig struct {
	MaxEntries int `koanf:"max_entries"`
}

// Validate checks configuration invariants. It is called by LoadWithKoanf
// after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("api.default_page_size must be at least 1, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be >= api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s", c.Security.RateLimitWindow)
		}
	}
	if c.EgressProxy.CheckInterval <= 0 {
		return fmt.Errorf("egress_proxy.check_interval must be positive, got %s", c.EgressProxy.CheckInterval)
	}
	if c.EgressProxy.ProbeTimeout <= 0 {
		return fmt.Errorf("egress_proxy.probe_timeout must be positive, got %s", c.EgressProxy.ProbeTimeout)
	}
	if c.Stats.BroadcastInterval <= 0 {
		return fmt.Errorf("stats.broadcast_interval must be positive, got %s", c.Stats.BroadcastInterval)
	}
	if c.RequestLog.MaxBodyBytes < 0 {
		return fmt.Errorf("request_log.max_body_bytes must not be negative, got %d", c.RequestLog.MaxBodyBytes)
	}
	if c.ProxyLog.MaxEntries < 1 {
		return fmt.Errorf("proxy_log.max_entries must be at least 1, got %d", c.ProxyLog.MaxEntries)
	}
	return nil
}

// Addr returns the host:port pair the HTTP server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
