// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/avatar"
	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/logbuf"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
	"github.com/nullgravity/nullgravity/internal/proxycheck"
	"github.com/nullgravity/nullgravity/internal/statspush"
	"github.com/nullgravity/nullgravity/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type testEnv struct {
	srv    *httptest.Server
	server *Server
	db     *database.DB
	logs   *logbuf.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8046, Timeout: 30 * time.Second, DataDir: dataDir},
		Database: config.DatabaseConfig{
			Path:      filepath.Join(dataDir, "test.duckdb"),
			MaxMemory: "256MB",
			Threads:   1,
		},
		API:      config.APIConfig{DefaultPageSize: 50, MaxPageSize: 500},
		Security: config.SecurityConfig{CORSOrigins: []string{"*"}, RateLimitDisabled: true},
		EgressProxy: config.EgressProxyConfig{
			CheckInterval: time.Hour,
			ProbeURL:      "http://connectivity.test/generate_204",
			ProbeTimeout:  time.Second,
		},
		Avatars:    config.AvatarConfig{Path: filepath.Join(dataDir, "avatars"), DownloadRate: 100, DownloadBurst: 10},
		Stats:      config.StatsConfig{BroadcastInterval: time.Hour},
		RequestLog: config.RequestLogConfig{MaxBodyBytes: 5000},
		ProxyLog:   config.ProxyLogConfig{MaxEntries: 500},
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)

	avatars, err := avatar.New(cfg.Avatars)
	if err != nil {
		t.Fatalf("failed to open avatar store: %v", err)
	}
	t.Cleanup(func() { _ = avatars.Close() })

	monitor := proxycheck.New(cfg.EgressProxy, hub, db)
	proxyLogs := logbuf.New(cfg.ProxyLog.MaxEntries)
	pusher := statspush.New(cfg.Stats, db, monitor, hub, time.Now())

	server := NewServer(cfg, db, hub, monitor, avatars, proxyLogs, pusher, "test", time.Now())
	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, server: server, db: db, logs: proxyLogs}
}

// doJSON performs a request and decodes the envelope.
func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}) (int, *models.APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	envelope := &models.APIResponse{}
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return resp.StatusCode, envelope
}

// dataAs re-marshals envelope data into a typed value.
func dataAs(t *testing.T, envelope *models.APIResponse, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("failed to re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, envelope := env.doJSON(t, http.MethodGet, "/api/health", nil)
	if code != http.StatusOK || envelope.Status != "success" {
		t.Fatalf("unexpected health response: %d %+v", code, envelope)
	}

	var health healthResponse
	dataAs(t, envelope, &health)
	if health.Status != "healthy" || health.Database != "up" || health.Version != "test" {
		t.Errorf("unexpected health payload: %+v", health)
	}
}

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create
	code, envelope := env.doJSON(t, http.MethodPost, "/api/accounts",
		models.AccountCreate{Email: "one@example.com", DisplayName: "One"})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %+v", code, envelope.Error)
	}
	var acc models.Account
	dataAs(t, envelope, &acc)
	if acc.Provider != "google" || acc.Status != models.AccountStatusActive {
		t.Errorf("defaults not applied: %+v", acc)
	}

	// Duplicate email conflicts.
	code, envelope = env.doJSON(t, http.MethodPost, "/api/accounts",
		models.AccountCreate{Email: "one@example.com"})
	if code != http.StatusConflict || envelope.Error == nil || envelope.Error.Code != ErrCodeConflict {
		t.Errorf("expected conflict envelope, got %d %+v", code, envelope.Error)
	}

	// Invalid email fails validation.
	code, envelope = env.doJSON(t, http.MethodPost, "/api/accounts",
		models.AccountCreate{Email: "not-an-email"})
	if code != http.StatusBadRequest || envelope.Error == nil || envelope.Error.Code != ErrCodeValidationError {
		t.Errorf("expected validation error, got %d %+v", code, envelope.Error)
	}

	// List
	code, envelope = env.doJSON(t, http.MethodGet, "/api/accounts", nil)
	if code != http.StatusOK {
		t.Fatalf("list failed: %d", code)
	}
	var list accountListResponse
	dataAs(t, envelope, &list)
	if list.Total != 1 || len(list.Accounts) != 1 {
		t.Errorf("expected one account, got %+v", list)
	}

	// Patch
	label := "primary"
	code, envelope = env.doJSON(t, http.MethodPatch, "/api/accounts/"+acc.ID.String(),
		models.AccountUpdate{Label: &label})
	if code != http.StatusOK {
		t.Fatalf("patch failed: %d %+v", code, envelope.Error)
	}
	var updated models.Account
	dataAs(t, envelope, &updated)
	if updated.Label != "primary" {
		t.Errorf("label not updated: %+v", updated)
	}

	// Get
	code, _ = env.doJSON(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil)
	if code != http.StatusOK {
		t.Errorf("get failed: %d", code)
	}

	// Delete, then 404.
	code, _ = env.doJSON(t, http.MethodDelete, "/api/accounts/"+acc.ID.String(), nil)
	if code != http.StatusOK {
		t.Errorf("delete failed: %d", code)
	}
	code, envelope = env.doJSON(t, http.MethodGet, "/api/accounts/"+acc.ID.String(), nil)
	if code != http.StatusNotFound || envelope.Error.Code != ErrCodeNotFound {
		t.Errorf("expected 404 after delete, got %d %+v", code, envelope.Error)
	}
}

func TestAccountExportImport(t *testing.T) {
	env := newTestEnv(t)

	var seeded []models.Account
	for _, email := range []string{"a@example.com", "b@example.com"} {
		code, envelope := env.doJSON(t, http.MethodPost, "/api/accounts",
			models.AccountCreate{Email: email})
		if code != http.StatusCreated {
			t.Fatalf("seed account failed: %d %+v", code, envelope.Error)
		}
		var acc models.Account
		dataAs(t, envelope, &acc)
		seeded = append(seeded, acc)
	}

	// Export is raw JSON, not the envelope. An empty body exports everything.
	resp, err := env.srv.Client().Post(env.srv.URL+"/api/accounts/export", "application/json", nil)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Error("expected attachment disposition")
	}
	var doc models.AccountExport
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if doc.Version != 1 || len(doc.Accounts) != 2 {
		t.Fatalf("unexpected export: %+v", doc)
	}

	// account_ids narrows the export to the selected accounts.
	body, err := json.Marshal(map[string][]string{"account_ids": {seeded[0].ID.String()}})
	if err != nil {
		t.Fatalf("failed to marshal export request: %v", err)
	}
	resp, err = env.srv.Client().Post(env.srv.URL+"/api/accounts/export", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("filtered export failed: %v", err)
	}
	var filtered models.AccountExport
	decodeErr := json.NewDecoder(resp.Body).Decode(&filtered)
	_ = resp.Body.Close()
	if decodeErr != nil {
		t.Fatalf("failed to decode filtered export: %v", decodeErr)
	}
	if len(filtered.Accounts) != 1 || filtered.Accounts[0].Email != "a@example.com" {
		t.Fatalf("unexpected filtered export: %+v", filtered.Accounts)
	}

	// Re-import: both emails already exist, everything is skipped.
	code, envelope := env.doJSON(t, http.MethodPost, "/api/accounts/import", doc)
	if code != http.StatusOK {
		t.Fatalf("import failed: %d %+v", code, envelope.Error)
	}
	var result models.ImportResult
	dataAs(t, envelope, &result)
	if result.Imported != 0 || result.Skipped != 2 {
		t.Errorf("expected all skipped, got %+v", result)
	}
}

func TestAccountAvatarRedirectsAndCaches(t *testing.T) {
	env := newTestEnv(t)

	img := []byte("png-bytes")
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer origin.Close()

	code, envelope := env.doJSON(t, http.MethodPost, "/api/accounts",
		models.AccountCreate{Email: "ava@example.com", AvatarURL: origin.URL + "/a.png"})
	if code != http.StatusCreated {
		t.Fatalf("create failed: %d", code)
	}
	var acc models.Account
	dataAs(t, envelope, &acc)

	// First hit: redirect to origin, background cache kicks off.
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(env.srv.URL + "/api/accounts/" + acc.ID.String() + "/avatar")
	if err != nil {
		t.Fatalf("avatar request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 on cache miss, got %d", resp.StatusCode)
	}

	// Wait for the background download, then expect cached bytes.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a, err := env.db.GetAccount(context.Background(), acc.ID); err == nil && a.AvatarCached {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err = client.Get(env.srv.URL + "/api/accounts/" + acc.ID.String() + "/avatar")
	if err != nil {
		t.Fatalf("cached avatar request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.Equal(body, img) {
		t.Errorf("expected cached image, got %d %q", resp.StatusCode, body)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "max-age=86400") {
		t.Errorf("expected 24h cache header, got %q", cc)
	}
}

func TestMappingsReorder(t *testing.T) {
	env := newTestEnv(t)

	var ids []models.ModelMapping
	for _, pattern := range []string{"claude-3-*", "gpt-4*"} {
		code, envelope := env.doJSON(t, http.MethodPost, "/api/model-mappings",
			models.ModelMappingCreate{Pattern: pattern, Target: "upstream-model"})
		if code != http.StatusCreated {
			t.Fatalf("create mapping failed: %d %+v", code, envelope.Error)
		}
		var m models.ModelMapping
		dataAs(t, envelope, &m)
		ids = append(ids, m)
	}

	// Swap priorities.
	code, envelope := env.doJSON(t, http.MethodPut, "/api/model-mappings/reorder",
		models.ReorderRequest{Orders: []models.MappingOrder{
			{ID: ids[0].ID, Priority: 1},
			{ID: ids[1].ID, Priority: 0},
		}})
	if code != http.StatusOK {
		t.Fatalf("reorder failed: %d %+v", code, envelope.Error)
	}
	var mappings []models.ModelMapping
	dataAs(t, envelope, &mappings)
	if len(mappings) != 2 || mappings[0].Pattern != "gpt-4*" {
		t.Errorf("unexpected order after reorder: %+v", mappings)
	}
}

func TestTokenLifecycle(t *testing.T) {
	env := newTestEnv(t)

	code, envelope := env.doJSON(t, http.MethodPost, "/api/api-tokens",
		models.APITokenCreate{Name: "proxy-client"})
	if code != http.StatusCreated {
		t.Fatalf("create token failed: %d %+v", code, envelope.Error)
	}
	var token models.APIToken
	dataAs(t, envelope, &token)
	if !strings.HasPrefix(token.Token, "sk-") || len(token.Token) != 67 {
		t.Errorf("unexpected token value: %q", token.Token)
	}

	// Toggle off.
	code, envelope = env.doJSON(t, http.MethodPatch, "/api/api-tokens/"+token.ID.String()+"/toggle", nil)
	if code != http.StatusOK {
		t.Fatalf("toggle failed: %d", code)
	}
	var toggled models.APIToken
	dataAs(t, envelope, &toggled)
	if toggled.IsActive {
		t.Error("expected token inactive after toggle")
	}

	// Regenerate changes the value.
	code, envelope = env.doJSON(t, http.MethodPost, "/api/api-tokens/"+token.ID.String()+"/regenerate", nil)
	if code != http.StatusOK {
		t.Fatalf("regenerate failed: %d", code)
	}
	var regenerated models.APIToken
	dataAs(t, envelope, &regenerated)
	if regenerated.Token == token.Token {
		t.Error("regenerate did not change the token value")
	}

	// Delete, then 404.
	code, _ = env.doJSON(t, http.MethodDelete, "/api/api-tokens/"+token.ID.String(), nil)
	if code != http.StatusOK {
		t.Errorf("delete failed: %d", code)
	}
	code, _ = env.doJSON(t, http.MethodDelete, "/api/api-tokens/"+token.ID.String(), nil)
	if code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	// Defaults come back merged.
	code, envelope := env.doJSON(t, http.MethodGet, "/api/settings", nil)
	if code != http.StatusOK {
		t.Fatalf("get settings failed: %d", code)
	}
	var settings models.SettingsResponse
	dataAs(t, envelope, &settings)
	if settings.Settings["theme"] != "dark" || settings.Settings["schedule_mode"] != "round_robin" {
		t.Errorf("defaults missing: %+v", settings.Settings)
	}
	if settings.Settings["data_dir"] == "" {
		t.Error("data_dir must be the runtime path")
	}

	// Batch update persists and merges.
	code, envelope = env.doJSON(t, http.MethodPut, "/api/settings",
		settingsUpdateRequest{Settings: map[string]string{
			"theme":         "light",
			"proxy_url":     "http://127.0.0.1:7890",
			"proxy_enabled": "false",
		}})
	if code != http.StatusOK {
		t.Fatalf("put settings failed: %d %+v", code, envelope.Error)
	}
	dataAs(t, envelope, &settings)
	if settings.Settings["theme"] != "light" || settings.Settings["proxy_url"] != "http://127.0.0.1:7890" {
		t.Errorf("update not reflected: %+v", settings.Settings)
	}

	// data_dir is not writable.
	code, _ = env.doJSON(t, http.MethodPut, "/api/settings",
		settingsUpdateRequest{Settings: map[string]string{"data_dir": "/elsewhere"}})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for data_dir write, got %d", code)
	}
}

func TestStorageStatsAndClear(t *testing.T) {
	env := newTestEnv(t)

	if code, _ := env.doJSON(t, http.MethodPost, "/api/accounts",
		models.AccountCreate{Email: "st@example.com"}); code != http.StatusCreated {
		t.Fatal("seed account failed")
	}
	if err := env.server.avatars.Put("st-avatar", []byte("png-bytes"), "image/png"); err != nil {
		t.Fatalf("failed to seed avatar: %v", err)
	}

	code, envelope := env.doJSON(t, http.MethodGet, "/api/settings/storage/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("storage stats failed: %d %+v", code, envelope.Error)
	}
	var stats models.StorageStats
	dataAs(t, envelope, &stats)
	if stats.DataDir == "" || stats.AvatarsSize == 0 {
		t.Errorf("unexpected storage stats: %+v", stats)
	}
	// account.create is recorded as an event.
	if stats.EventsCount == 0 {
		t.Errorf("expected at least one event, got %+v", stats)
	}

	// type is required.
	code, envelope = env.doJSON(t, http.MethodPost, "/api/settings/storage/clear", nil)
	if code != http.StatusBadRequest || envelope.Error == nil {
		t.Errorf("expected 400 without type, got %d %+v", code, envelope.Error)
	}
	code, _ = env.doJSON(t, http.MethodPost, "/api/settings/storage/clear?type=sessions", nil)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", code)
	}

	// Selective clear leaves the other stores alone.
	code, envelope = env.doJSON(t, http.MethodPost, "/api/settings/storage/clear?type=events", nil)
	if code != http.StatusOK {
		t.Fatalf("clear events failed: %d %+v", code, envelope.Error)
	}
	var result map[string]string
	dataAs(t, envelope, &result)
	if result["cleared"] != "events" {
		t.Errorf("unexpected clear result: %+v", result)
	}
	if n, _ := env.db.CountEvents(context.Background()); n != 0 {
		t.Errorf("events not cleared, %d remain", n)
	}
	if !env.server.avatars.Has("st-avatar") {
		t.Error("avatar cache must survive an events-only clear")
	}

	code, envelope = env.doJSON(t, http.MethodPost, "/api/settings/storage/clear?type=avatars", nil)
	if code != http.StatusOK {
		t.Fatalf("clear avatars failed: %d %+v", code, envelope.Error)
	}
	if env.server.avatars.Has("st-avatar") {
		t.Error("avatar cache not cleared")
	}

	// all wipes logs, events, and avatars in one call.
	code, envelope = env.doJSON(t, http.MethodPost, "/api/settings/storage/clear?type=all", nil)
	if code != http.StatusOK {
		t.Fatalf("clear all failed: %d %+v", code, envelope.Error)
	}
	dataAs(t, envelope, &result)
	if result["cleared"] != "request_logs,events,avatars" {
		t.Errorf("unexpected clear-all result: %+v", result)
	}
}

func TestProxyStatusDisabled(t *testing.T) {
	env := newTestEnv(t)

	code, envelope := env.doJSON(t, http.MethodGet, "/api/settings/proxy/status", nil)
	if code != http.StatusOK {
		t.Fatalf("proxy status failed: %d", code)
	}
	var status models.ProxyStatus
	dataAs(t, envelope, &status)
	if status.Enabled || status.Connected {
		t.Errorf("expected disabled proxy status, got %+v", status)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)

	if code, _ := env.doJSON(t, http.MethodPost, "/api/accounts",
		models.AccountCreate{Email: "dash@example.com"}); code != http.StatusCreated {
		t.Fatal("seed account failed")
	}

	code, envelope := env.doJSON(t, http.MethodGet, "/api/dashboard/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("dashboard stats failed: %d", code)
	}
	var stats models.DashboardStats
	dataAs(t, envelope, &stats)
	if stats.TotalAccounts != 1 || stats.ActiveAccounts != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	// account.create events are recorded by the create handler.
	if len(stats.RecentEvents) == 0 {
		t.Error("expected recent events in snapshot")
	}
}

func TestAPIProxySurface(t *testing.T) {
	env := newTestEnv(t)

	env.logs.Log(models.ProxyLogEntry{Method: "POST", Path: "/v1/messages", Model: "claude-3-opus"})
	env.logs.Log(models.ProxyLogEntry{Method: "POST", Path: "/v1/chat/completions", Model: "gpt-4"})

	code, envelope := env.doJSON(t, http.MethodGet, "/api/api-proxy/status", nil)
	if code != http.StatusOK {
		t.Fatalf("status failed: %d", code)
	}
	var status models.APIProxyStatus
	dataAs(t, envelope, &status)
	if status.Running {
		t.Error("engine is external, running must be false")
	}
	if status.ScheduleMode != "round_robin" || status.TotalRequests != 2 {
		t.Errorf("unexpected status: %+v", status)
	}

	code, envelope = env.doJSON(t, http.MethodGet, "/api/api-proxy/logs?limit=1", nil)
	if code != http.StatusOK {
		t.Fatalf("logs failed: %d", code)
	}
	var page models.ProxyLogPage
	dataAs(t, envelope, &page)
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].Path != "/v1/chat/completions" {
		t.Errorf("expected newest-first window, got %+v", page)
	}

	code, _ = env.doJSON(t, http.MethodDelete, "/api/api-proxy/logs", nil)
	if code != http.StatusOK {
		t.Fatalf("clear failed: %d", code)
	}
	if env.logs.Count() != 0 {
		t.Error("ring buffer not cleared")
	}
}

func TestRequestLogSurface(t *testing.T) {
	env := newTestEnv(t)

	// Generate one loggable request, then wait for the async persist.
	if code, _ := env.doJSON(t, http.MethodGet, "/api/accounts", nil); code != http.StatusOK {
		t.Fatal("seed request failed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := env.db.CountRequestLogs(context.Background()); n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	code, envelope := env.doJSON(t, http.MethodGet, "/api/logs", nil)
	if code != http.StatusOK {
		t.Fatalf("log list failed: %d", code)
	}
	var page models.RequestLogPage
	dataAs(t, envelope, &page)
	if page.Total < 1 {
		t.Fatalf("expected at least one persisted request log, got %+v", page)
	}
	if page.Logs[0].Path != "/api/accounts" {
		t.Errorf("unexpected log entry: %+v", page.Logs[0])
	}

	code, _ = env.doJSON(t, http.MethodDelete, "/api/logs", nil)
	if code != http.StatusOK {
		t.Fatalf("clear failed: %d", code)
	}
}
