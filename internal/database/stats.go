// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/nullgravity/nullgravity/internal/models"
)

// RequestStats aggregates request log counters for the dashboard.
type RequestStats struct {
	TotalRequests int64
	RequestsToday int64
	SuccessRate   *float64 // percent of 2xx responses, nil when no data
	AvgLatencyMS  *float64 // nil when no data
}

// GetRequestStats computes the dashboard's request aggregates. "Today" is
// the UTC calendar day.
func (db *DB) GetRequestStats(ctx context.Context) (*RequestStats, error) {
	stats := &RequestStats{}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)

	var successCount int64
	var avgLatency sql.NullFloat64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE timestamp >= ?),
			COUNT(*) FILTER (WHERE status_code >= 200 AND status_code < 300),
			AVG(duration_ms)
		 FROM request_logs`, todayStart).
		Scan(&stats.TotalRequests, &stats.RequestsToday, &successCount, &avgLatency)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate request stats: %w", err)
	}

	if stats.TotalRequests > 0 {
		rate := roundTo(float64(successCount)/float64(stats.TotalRequests)*100, 1)
		stats.SuccessRate = &rate
	}
	if avgLatency.Valid {
		avg := roundTo(avgLatency.Float64, 1)
		stats.AvgLatencyMS = &avg
	}
	return stats, nil
}

// AccountCounts aggregates account states for the dashboard.
type AccountCounts struct {
	Total     int
	Active    int
	Forbidden int
}

// GetAccountCounts computes account counters. Active means status "active"
// and neither forbidden nor disabled.
func (db *DB) GetAccountCounts(ctx context.Context) (*AccountCounts, error) {
	counts := &AccountCounts{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active' AND NOT is_forbidden AND NOT is_disabled),
			COUNT(*) FILTER (WHERE is_forbidden)
		 FROM accounts`).
		Scan(&counts.Total, &counts.Active, &counts.Forbidden)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate account counts: %w", err)
	}
	return counts, nil
}

// ListAccountSummaries returns the dashboard's per-account view, ordered by
// creation time.
func (db *DB) ListAccountSummaries(ctx context.Context) ([]models.AccountSummary, error) {
	accounts, err := db.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, models.AccountSummary{
			ID:           a.ID,
			Email:        a.Email,
			DisplayName:  a.DisplayName,
			AvatarURL:    a.AvatarURL,
			AvatarCached: a.AvatarCached,
			Provider:     a.Provider,
			Status:       a.Status,
			Tier:         a.Tier,
			IsForbidden:  a.IsForbidden,
			StatusReason: a.StatusReason,
			QuotaPercent: a.QuotaPercent,
			Models:       a.Models,
			LastSyncAt:   a.LastSyncAt,
		})
	}
	return summaries, nil
}

func roundTo(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
