// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package models

// Setting keys with server-side side-effects.
const (
	SettingProxyURL     = "proxy_url"
	SettingProxyEnabled = "proxy_enabled"
	SettingDataDir      = "data_dir"
)

// DefaultSettings are the compile-time setting defaults. Stored rows merge
// over these on read; data_dir is always forced to the runtime path.
// Values are strings because settings are a flat key/value store shared
// with the UI.
var DefaultSettings = map[string]string{
	"proxy_url":             "",
	"proxy_enabled":         "false",
	"language":              "en",
	"theme":                 "dark",
	"data_dir":              "",
	"auto_refresh_enabled":  "false",
	"auto_refresh_interval": "15",
	"schedule_mode":         "round_robin",
}

// SettingUpdate is one key/value pair of a settings batch update.
type SettingUpdate struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// SettingsResponse wraps the merged settings map.
type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// StorageStats reports on-disk usage of the data directory.
type StorageStats struct {
	TotalSize   int64  `json:"total_size"`
	DBSize      int64  `json:"db_size"`
	AvatarsSize int64  `json:"avatars_size"`
	LogsCount   int64  `json:"logs_count"`
	EventsCount int64  `json:"events_count"`
	DataDir     string `json:"data_dir"`
}
