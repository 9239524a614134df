// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/models"
)

func TestStatusPollerPollsImmediately(t *testing.T) {
	stats := models.DashboardStats{TotalAccounts: 4, ActiveAccounts: 3, TotalRequests: 120}
	srv := httptest.NewServer(envelopeHandler(t, stats))
	defer srv.Close()

	poller := NewStatusPoller(New(srv.URL), time.Hour)
	if poller.Current() != nil {
		t.Fatal("snapshot present before first poll")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = poller.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for poller.Current() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	got := poller.Current()
	if got == nil {
		t.Fatal("no snapshot after initial poll")
	}
	if got.TotalAccounts != 4 || got.TotalRequests != 120 {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestStatusPollerMergesPushedStats(t *testing.T) {
	poller := NewStatusPoller(New("http://127.0.0.1:1"), time.Hour)
	sock, err := NewSocket("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	poller.Attach(sock)

	payload, err := json.Marshal(models.DashboardStats{TotalAccounts: 7, RequestsToday: 11})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	sock.dispatch(envelope{Type: "stats_update", Payload: payload})

	got := poller.Current()
	if got == nil {
		t.Fatal("no snapshot after push")
	}
	if got.TotalAccounts != 7 || got.RequestsToday != 11 {
		t.Fatalf("snapshot = %+v", got)
	}

	// Malformed payloads are dropped without clearing the snapshot.
	sock.dispatch(envelope{Type: "stats_update", Payload: json.RawMessage(`"nope"`)})
	if got := poller.Current(); got == nil || got.TotalAccounts != 7 {
		t.Fatalf("snapshot lost after malformed push: %+v", got)
	}
}

func TestStatusPollerSyncMarkers(t *testing.T) {
	poller := NewStatusPoller(New("http://127.0.0.1:1"), time.Hour)
	sock, err := NewSocket("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	poller.Attach(sock)

	if poller.Syncing() {
		t.Fatal("syncing before any marker")
	}

	sock.dispatch(envelope{Type: "sync_started", Payload: json.RawMessage(`{"account_id":"acc-1"}`)})
	if !poller.Syncing() || !poller.SyncingAccount("acc-1") {
		t.Fatal("sync_started marker not applied")
	}
	if poller.SyncingAccount("acc-2") {
		t.Fatal("unrelated account reported syncing")
	}

	sock.dispatch(envelope{Type: "sync_completed", Payload: json.RawMessage(`{"account_id":"acc-1"}`)})
	if poller.Syncing() || poller.SyncingAccount("acc-1") {
		t.Fatal("sync_completed marker not applied")
	}

	// Markers without an account id are ignored.
	sock.dispatch(envelope{Type: "sync_started", Payload: json.RawMessage(`{}`)})
	if poller.Syncing() {
		t.Fatal("empty marker toggled sync state")
	}
}
