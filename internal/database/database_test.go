// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/models"
)

// newTestDB creates a file-backed DuckDB in a temp dir, closed on cleanup.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "256MB",
		Threads:   1,
	}
	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func TestAccountCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc := &models.Account{Email: "alice@example.com", DisplayName: "Alice"}
	if err := db.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID == uuid.Nil {
		t.Fatal("expected generated account ID")
	}
	if acc.Provider != "google" || acc.Status != models.AccountStatusActive {
		t.Errorf("expected defaults applied, got provider=%q status=%q", acc.Provider, acc.Status)
	}

	// Duplicate email is rejected.
	dup := &models.Account{Email: "alice@example.com"}
	if err := db.CreateAccount(ctx, dup); !errors.Is(err, ErrEmailConflict) {
		t.Errorf("expected ErrEmailConflict, got %v", err)
	}

	got, err := db.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Email != "alice@example.com" || got.DisplayName != "Alice" {
		t.Errorf("unexpected account: %+v", got)
	}

	status := models.AccountStatusRateLimited
	quota := 42.5
	updated, err := db.UpdateAccount(ctx, acc.ID, &models.AccountUpdate{
		Status:       &status,
		QuotaPercent: &quota,
	})
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if updated.Status != status || updated.QuotaPercent != quota {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.DisplayName != "Alice" {
		t.Errorf("nil fields should be untouched, got %q", updated.DisplayName)
	}

	if err := db.DeleteAccount(ctx, acc.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := db.GetAccount(ctx, acc.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound after delete, got %v", err)
	}
	if err := db.DeleteAccount(ctx, acc.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound on double delete, got %v", err)
	}
}

func TestUpdateAccountAvatarURLResetsCache(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc := &models.Account{Email: "bob@example.com", AvatarURL: "https://img/old.png"}
	if err := db.CreateAccount(ctx, acc); err != nil {
		t.Fatal(err)
	}
	if err := db.SetAvatarCached(ctx, acc.ID, true); err != nil {
		t.Fatal(err)
	}

	newURL := "https://img/new.png"
	updated, err := db.UpdateAccount(ctx, acc.ID, &models.AccountUpdate{AvatarURL: &newURL})
	if err != nil {
		t.Fatal(err)
	}
	if updated.AvatarCached {
		t.Error("changing avatar_url should reset avatar_cached")
	}
}

func TestListAccountsOrderedByCreation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		acc := &models.Account{Email: email, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.CreateAccount(ctx, acc); err != nil {
			t.Fatal(err)
		}
	}

	accounts, err := db.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	for i, want := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if accounts[i].Email != want {
			t.Errorf("position %d: expected %s, got %s", i, want, accounts[i].Email)
		}
	}
}

func TestMappingPriorityOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p0, p5 := 0, 5
	first, err := db.CreateMapping(ctx, &models.ModelMappingCreate{
		Pattern: "claude-3-*", Target: "gemini-2.5-pro", Priority: &p5,
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.CreateMapping(ctx, &models.ModelMappingCreate{
		Pattern: "gpt-4*", Target: "gemini-2.5-flash", Priority: &p0,
	})
	if err != nil {
		t.Fatal(err)
	}
	// No explicit priority: appended after the max.
	third, err := db.CreateMapping(ctx, &models.ModelMappingCreate{
		Pattern: "o1*", Target: "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatal(err)
	}
	if third.Priority != 6 {
		t.Errorf("expected appended priority 6, got %d", third.Priority)
	}

	mappings, err := db.ListMappings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	gotOrder := []uuid.UUID{mappings[0].ID, mappings[1].ID, mappings[2].ID}
	wantOrder := []uuid.UUID{second.ID, first.ID, third.ID}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("position %d: expected %s, got %s", i, wantOrder[i], gotOrder[i])
		}
	}

	// Reorder swaps first and last.
	err = db.ReorderMappings(ctx, []models.MappingOrder{
		{ID: third.ID, Priority: 0},
		{ID: second.ID, Priority: 1},
		{ID: first.ID, Priority: 2},
	})
	if err != nil {
		t.Fatalf("ReorderMappings: %v", err)
	}
	mappings, err = db.ListMappings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mappings[0].ID != third.ID || mappings[2].ID != first.ID {
		t.Errorf("reorder not applied: %v", mappings)
	}
}

func TestReorderUnknownIDFailsWholeBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := 3
	m, err := db.CreateMapping(ctx, &models.ModelMappingCreate{
		Pattern: "a*", Target: "b", Priority: &p,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.ReorderMappings(ctx, []models.MappingOrder{
		{ID: m.ID, Priority: 9},
		{ID: uuid.New(), Priority: 1},
	})
	if !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("expected ErrMappingNotFound, got %v", err)
	}

	// Transaction rolled back: priority unchanged.
	mappings, err := db.ListMappings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mappings[0].Priority != 3 {
		t.Errorf("expected rollback to priority 3, got %d", mappings[0].Priority)
	}
}

func TestTokenLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tok, err := db.CreateToken(ctx, "cli")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if !strings.HasPrefix(tok.Token, "sk-") || len(tok.Token) != 3+64 {
		t.Errorf("unexpected token format: %q", tok.Token)
	}

	// Validation touches counters.
	validated, err := db.ValidateToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if validated.TotalRequests != 1 || validated.LastUsedAt == nil {
		t.Errorf("expected touch on validation: %+v", validated)
	}

	// Toggle off and validation fails.
	toggled, err := db.ToggleToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if toggled.IsActive {
		t.Error("expected token inactive after toggle")
	}
	if _, err := db.ValidateToken(ctx, tok.Token); !errors.Is(err, ErrTokenInactive) {
		t.Errorf("expected ErrTokenInactive, got %v", err)
	}

	// Regenerate invalidates the old value.
	regen, err := db.RegenerateToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if regen.Token == tok.Token {
		t.Error("expected a new token value after regeneration")
	}
	if _, err := db.ValidateToken(ctx, tok.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound for stale value, got %v", err)
	}
}

func TestSettingsMergeOverDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	settings, err := db.GetAllSettings(ctx, "/data/ng")
	if err != nil {
		t.Fatal(err)
	}
	if settings["theme"] != "dark" || settings["proxy_enabled"] != "false" {
		t.Errorf("expected defaults in merged settings, got %v", settings)
	}
	if settings["data_dir"] != "/data/ng" {
		t.Errorf("data_dir must be forced to runtime path, got %q", settings["data_dir"])
	}

	err = db.UpsertSettings(ctx, []models.SettingUpdate{
		{Key: "theme", Value: "light"},
		{Key: "proxy_url", Value: "http://127.0.0.1:7890"},
		{Key: "data_dir", Value: "/should/be/ignored"},
	})
	if err != nil {
		t.Fatal(err)
	}

	settings, err = db.GetAllSettings(ctx, "/data/ng")
	if err != nil {
		t.Fatal(err)
	}
	if settings["theme"] != "light" {
		t.Errorf("expected stored value to win, got %q", settings["theme"])
	}
	if settings["proxy_url"] != "http://127.0.0.1:7890" {
		t.Errorf("unexpected proxy_url: %q", settings["proxy_url"])
	}
	if settings["data_dir"] != "/data/ng" {
		t.Errorf("data_dir must stay forced, got %q", settings["data_dir"])
	}

	// Upsert overwrites in place.
	if err := db.UpsertSettings(ctx, []models.SettingUpdate{{Key: "theme", Value: "dark"}}); err != nil {
		t.Fatal(err)
	}
	val, ok, err := db.GetSetting(ctx, "theme")
	if err != nil || !ok || val != "dark" {
		t.Errorf("GetSetting(theme) = %q, %v, %v", val, ok, err)
	}
}

func TestRequestLogListingAndSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	entries := []models.RequestLog{
		{Method: "GET", Path: "/api/accounts", StatusCode: 200, DurationMS: 12.5},
		{Method: "POST", Path: "/api/accounts", StatusCode: 201, DurationMS: 30},
		{Method: "GET", Path: "/api/settings", StatusCode: 500, DurationMS: 5, ErrorDetail: "boom"},
	}
	for i := range entries {
		entries[i].Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := db.InsertRequestLog(ctx, &entries[i]); err != nil {
			t.Fatal(err)
		}
	}
	if entries[0].ID == 0 {
		t.Error("expected sequence id assigned on insert")
	}

	page, err := db.ListRequestLogs(ctx, 1, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Logs) != 2 {
		t.Fatalf("expected total 3 with 2 on page, got %d/%d", page.Total, len(page.Logs))
	}
	// Newest first.
	if page.Logs[0].Path != "/api/settings" {
		t.Errorf("expected newest entry first, got %s", page.Logs[0].Path)
	}

	// Substring search over path.
	page, err = db.ListRequestLogs(ctx, 1, 50, "accounts")
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Errorf("expected 2 matches for 'accounts', got %d", page.Total)
	}

	// Numeric search also matches status codes.
	page, err = db.ListRequestLogs(ctx, 1, 50, "500")
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Logs[0].StatusCode != 500 {
		t.Errorf("expected the 500 entry, got %+v", page)
	}

	if err := db.ClearRequestLogs(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountRequestLogs(ctx)
	if err != nil || n != 0 {
		t.Errorf("expected empty log table after clear, got %d (%v)", n, err)
	}
}

func TestRecentEventsJoinAccounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc := &models.Account{Email: "carol@example.com"}
	if err := db.CreateAccount(ctx, acc); err != nil {
		t.Fatal(err)
	}
	if err := db.SetAvatarCached(ctx, acc.ID, true); err != nil {
		t.Fatal(err)
	}

	evt := &models.Event{
		Type:      models.EventAccountCreate,
		Level:     models.EventLevelSuccess,
		Message:   "Account created",
		AccountID: &acc.ID,
	}
	if err := db.InsertEvent(ctx, evt); err != nil {
		t.Fatal(err)
	}
	orphan := &models.Event{Type: models.EventSystemStart, Message: "Backend started"}
	if err := db.InsertEvent(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	items, err := db.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(items))
	}

	var linked *models.EventItem
	for i := range items {
		if items[i].Type == models.EventAccountCreate {
			linked = &items[i]
		}
	}
	if linked == nil {
		t.Fatal("account.create event missing")
	}
	if linked.AccountEmail != "carol@example.com" {
		t.Errorf("expected joined email, got %q", linked.AccountEmail)
	}
	wantAvatar := "/api/accounts/" + acc.ID.String() + "/avatar"
	if linked.AccountAvatar != wantAvatar {
		t.Errorf("expected avatar path %q, got %q", wantAvatar, linked.AccountAvatar)
	}
}

func TestRequestStatsAggregation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// No data: rates stay nil.
	stats, err := db.GetRequestStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.SuccessRate != nil || stats.AvgLatencyMS != nil {
		t.Errorf("expected nil rates with no data, got %+v", stats)
	}

	now := time.Now().UTC()
	logs := []models.RequestLog{
		{Method: "GET", Path: "/a", StatusCode: 200, DurationMS: 10, Timestamp: now},
		{Method: "GET", Path: "/b", StatusCode: 204, DurationMS: 20, Timestamp: now},
		{Method: "GET", Path: "/c", StatusCode: 500, DurationMS: 30, Timestamp: now.Add(-48 * time.Hour)},
	}
	for i := range logs {
		if err := db.InsertRequestLog(ctx, &logs[i]); err != nil {
			t.Fatal(err)
		}
	}

	stats, err = db.GetRequestStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("expected 3 total requests, got %d", stats.TotalRequests)
	}
	if stats.RequestsToday != 2 {
		t.Errorf("expected 2 requests today, got %d", stats.RequestsToday)
	}
	if stats.SuccessRate == nil || *stats.SuccessRate != 66.7 {
		t.Errorf("expected success rate 66.7, got %v", stats.SuccessRate)
	}
	if stats.AvgLatencyMS == nil || *stats.AvgLatencyMS != 20 {
		t.Errorf("expected avg latency 20, got %v", stats.AvgLatencyMS)
	}
}

func TestAccountCountsAggregation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mk := func(email, status string, forbidden, disabled bool) {
		t.Helper()
		acc := &models.Account{
			Email: email, Status: status,
			IsForbidden: forbidden, IsDisabled: disabled,
		}
		if err := db.CreateAccount(ctx, acc); err != nil {
			t.Fatal(err)
		}
	}
	mk("a@x.com", models.AccountStatusActive, false, false)
	mk("b@x.com", models.AccountStatusActive, true, false)
	mk("c@x.com", models.AccountStatusActive, false, true)
	mk("d@x.com", models.AccountStatusExhausted, false, false)

	counts, err := db.GetAccountCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Total != 4 || counts.Active != 1 || counts.Forbidden != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}
