// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package websocket implements the push hub behind /api/ws. The UI keeps a
// single connection open; the hub fans every broadcast out to all connected
// clients.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/metrics"
	"github.com/nullgravity/nullgravity/internal/models"
)

// Message types pushed to clients.
const (
	MessageTypeLog           = "log"
	MessageTypeEvent         = "event"
	MessageTypeProxyStatus   = "proxy_status"
	MessageTypeStatsUpdate   = "stats_update"
	MessageTypeSyncStarted   = "sync_started"
	MessageTypeSyncCompleted = "sync_completed"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message is the wire envelope for all push traffic.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is canceled, then closes
// all clients and returns ctx.Err(). Designed for suture supervision: a
// restart never leaves orphaned connections.
//
// Selection is priority-ordered because Go's select picks randomly among
// ready channels: shutdown first, then client lifecycle, then broadcasts.
// Client state is therefore always consistent before a message fans out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle (non-blocking check).
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or block until anything arrives.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnectedClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnectedClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// shutdown closes all clients and logs the reason. Context cancellation is
// expected behavior here, not an error.
func (h *Hub) shutdown(ctx context.Context) {
	count := h.GetClientCount()
	h.closeAllClients()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// broadcastToClients fans a message out to every client in id order.
// Sorting keeps delivery order deterministic across runs; a client whose
// send buffer is full is evicted rather than allowed to stall the rest.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnectedClients.Set(float64(len(h.clients)))
	}
	metrics.RecordBroadcast(message.Type)
}

// closeAllClients closes every connected client, in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnectedClients.Set(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast enqueues a message of the given type. The message is dropped
// with a warning when the broadcast buffer is full.
func (h *Hub) Broadcast(messageType string, payload interface{}) {
	message := Message{Type: messageType, Payload: payload}
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastLog pushes a persisted request log entry.
func (h *Hub) BroadcastLog(entry *models.RequestLog) {
	h.Broadcast(MessageTypeLog, entry)
}

// BroadcastEvent pushes a business event.
func (h *Hub) BroadcastEvent(evt *models.Event) {
	h.Broadcast(MessageTypeEvent, evt)
}

// BroadcastProxyStatus pushes an egress proxy probe result.
func (h *Hub) BroadcastProxyStatus(status *models.ProxyStatus) {
	h.Broadcast(MessageTypeProxyStatus, status)
}

// BroadcastStatsUpdate pushes a dashboard stats snapshot.
func (h *Hub) BroadcastStatsUpdate(stats *models.DashboardStats) {
	h.Broadcast(MessageTypeStatsUpdate, stats)
}

// SyncMarker is the payload for sync_started and sync_completed messages.
type SyncMarker struct {
	AccountID string `json:"account_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// BroadcastSyncStarted marks the beginning of an account sync.
func (h *Hub) BroadcastSyncStarted(accountID string) {
	h.Broadcast(MessageTypeSyncStarted, SyncMarker{
		AccountID: accountID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// BroadcastSyncCompleted marks the end of an account sync.
func (h *Hub) BroadcastSyncCompleted(accountID string) {
	h.Broadcast(MessageTypeSyncCompleted, SyncMarker{
		AccountID: accountID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
