// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

// schemaQueries returns the table and sequence creation statements.
//
// All columns are defined in the initial CREATE TABLE statements; there is
// no migration machinery. Integer-id tables draw from DuckDB sequences
// since DuckDB has no AUTOINCREMENT.
func schemaQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_request_logs START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_events START 1`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			avatar_cached BOOLEAN NOT NULL DEFAULT false,
			provider TEXT NOT NULL DEFAULT 'google',
			status TEXT NOT NULL DEFAULT 'active',
			label TEXT NOT NULL DEFAULT '',
			quota_percent DOUBLE NOT NULL DEFAULT 0,
			is_forbidden BOOLEAN NOT NULL DEFAULT false,
			is_disabled BOOLEAN NOT NULL DEFAULT false,
			tier TEXT NOT NULL DEFAULT '',
			status_reason TEXT NOT NULL DEFAULT '',
			status_details TEXT NOT NULL DEFAULT '',
			quota_buckets TEXT NOT NULL DEFAULT '',
			models TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_sync_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS model_mappings (
			id UUID PRIMARY KEY,
			pattern TEXT NOT NULL,
			target TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			priority INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS api_tokens (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT true,
			total_requests BIGINT NOT NULL DEFAULT 0,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS request_logs (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_request_logs'),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			duration_ms DOUBLE NOT NULL DEFAULT 0,
			client_ip TEXT NOT NULL DEFAULT '',
			request_headers TEXT NOT NULL DEFAULT '',
			request_body TEXT NOT NULL DEFAULT '',
			response_body TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			account_id UUID
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_events'),
			type TEXT NOT NULL,
			level TEXT NOT NULL DEFAULT 'info',
			message TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			account_id UUID,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_request_logs_path ON request_logs (path)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_priority ON model_mappings (priority, created_at)`,
	}
}
