// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package client

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/nullgravity/nullgravity/internal/logging"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
	keepaliveInterval     = 30 * time.Second
	socketReadDeadline    = 90 * time.Second
)

// Handler receives the raw payload of one pushed message.
type Handler func(payload json.RawMessage)

// envelope mirrors the service's push message shape.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Socket maintains one persistent WebSocket to the service's /api/ws
// endpoint. Connection loss triggers reconnection with exponential backoff
// (1s doubling to a 30s cap, reset on success); an application-level ping
// is sent every 30s while connected.
type Socket struct {
	wsURL  string
	dialer *websocket.Dialer

	mu          sync.RWMutex
	handlers    map[string][]Handler
	allHandlers []Handler
	onConnected func(bool)
	conn        *websocket.Conn
}

// NewSocket creates a socket for the service at baseURL. The URL scheme is
// rewritten to ws/wss.
func NewSocket(baseURL string) (*Socket, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return &Socket{
		wsURL:    scheme + "://" + parsed.Host + "/api/ws",
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string][]Handler),
	}, nil
}

// Subscribe registers a handler for one message type. Handlers are invoked
// sequentially on the read goroutine.
func (s *Socket) Subscribe(messageType string, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[messageType] = append(s.handlers[messageType], fn)
}

// SubscribeAll registers a handler for every message type. The handler
// receives the full envelope re-encoded as JSON.
func (s *Socket) SubscribeAll(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allHandlers = append(s.allHandlers, fn)
}

// OnConnected registers a callback invoked with true after each successful
// connect and false after each loss.
func (s *Socket) OnConnected(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = fn
}

// Connected reports whether a connection is currently established.
func (s *Socket) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// Run connects and processes messages until the context is canceled,
// reconnecting on every failure.
func (s *Socket) Run(ctx context.Context) error {
	delay := initialReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
		if err != nil {
			logging.Debug().Err(err).Str("url", s.wsURL).Msg("socket connect failed")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		delay = initialReconnectDelay
		s.setConn(conn)
		s.notifyConnected(true)

		s.serve(ctx, conn)

		s.setConn(nil)
		s.notifyConnected(false)
		_ = conn.Close()
	}
}

// serve reads messages on one connection until it fails or the context is
// canceled, sending keepalive pings between reads.
func (s *Socket) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	// Keepalive writer. The service answers {"type":"ping"} with a pong,
	// which keeps the read deadline moving.
	go func() {
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				ping := envelope{Type: "ping"}
				if err := conn.WriteJSON(ping); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(socketReadDeadline)); err != nil {
			return
		}
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && !isNormalClose(err) {
				logging.Debug().Err(err).Msg("socket read failed")
			}
			return
		}
		s.dispatch(msg)
	}
}

func (s *Socket) dispatch(msg envelope) {
	s.mu.RLock()
	typed := make([]Handler, len(s.handlers[msg.Type]))
	copy(typed, s.handlers[msg.Type])
	all := make([]Handler, len(s.allHandlers))
	copy(all, s.allHandlers)
	s.mu.RUnlock()

	for _, fn := range typed {
		fn(msg.Payload)
	}
	if len(all) > 0 {
		raw, err := json.Marshal(msg)
		if err != nil {
			return
		}
		for _, fn := range all {
			fn(raw)
		}
	}
}

func (s *Socket) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Socket) notifyConnected(connected bool) {
	s.mu.RLock()
	fn := s.onConnected
	s.mu.RUnlock()
	if fn != nil {
		fn(connected)
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
