// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "NG_CONFIG"

// envPrefix namespaces all NullGravity environment variables.
const envPrefix = "NG_"

// defaultConfig returns a Config with all defaults applied. These mirror the
// values the desktop shell assumes: loopback host, port 8046, permissive
// rate limits sized for a UI polling at 3-30 second intervals.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8046,
			Timeout: 30 * time.Second,
			DataDir: defaultDataDir(),
		},
		Database: DatabaseConfig{
			Path:      "", // resolved against server.data_dir when empty
			MaxMemory: "512MB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Security: SecurityConfig{
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:1420",
				"http://127.0.0.1:8046",
				"tauri://localhost",
			},
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		EgressProxy: EgressProxyConfig{
			CheckInterval: 60 * time.Second,
			ProbeURL:      "https://www.gstatic.com/generate_204",
			ProbeTimeout:  10 * time.Second,
		},
		Avatars: AvatarConfig{
			Path:          "", // resolved against server.data_dir when empty
			DownloadRate:  1,
			DownloadBurst: 3,
		},
		Stats: StatsConfig{
			BroadcastInterval: 15 * time.Second,
		},
		RequestLog: RequestLogConfig{
			MaxBodyBytes: 5000,
		},
		ProxyLog: ProxyLogConfig{
			MaxEntries: 500,
		},
	}
}

// defaultDataDir returns the per-user data directory for the service.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "nullgravity")
	}
	return ".nullgravity"
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: NG_* overrides (highest priority)
//
// Precedence: ENV > file > defaults. Nested keys use double underscores in
// environment variables: NG_SERVER__PORT -> server.port.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyDataDir(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyDataDir resolves paths left empty against the configured data dir.
func applyDataDir(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Server.DataDir, "nullgravity.duckdb")
	}
	if cfg.Avatars.Path == "" {
		cfg.Avatars.Path = filepath.Join(cfg.Server.DataDir, "avatars")
	}
}

// findConfigFile searches for a config file, honoring NG_CONFIG first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied through environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults): nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - NG_SERVER__PORT -> server.port
//   - NG_SECURITY__CORS_ORIGINS -> security.cors_origins
//   - NG_EGRESS_PROXY__CHECK_INTERVAL -> egress_proxy.check_interval
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}
