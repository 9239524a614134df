// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package client

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
)

// DefaultFeedCapacity bounds the in-memory log feed.
const DefaultFeedCapacity = 500

// LogFeed is the UI-side request log buffer: seeded from one REST fetch,
// then fed by pushed "log" messages. Entries are deduplicated by id and
// kept newest-first, bounded to the configured capacity.
type LogFeed struct {
	mu      sync.Mutex
	entries []models.RequestLog
	seen    map[int64]struct{}
	max     int
}

// NewLogFeed creates a feed. Non-positive capacities fall back to
// DefaultFeedCapacity.
func NewLogFeed(capacity int) *LogFeed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &LogFeed{
		entries: make([]models.RequestLog, 0, capacity),
		seen:    make(map[int64]struct{}, capacity),
		max:     capacity,
	}
}

// Seed fills the feed from the REST surface. Pushed entries that raced the
// fetch are preserved: seeding merges, it does not replace.
func (f *LogFeed) Seed(ctx context.Context, c *Client) error {
	page, err := c.RequestLogs(ctx, 1, f.max, "")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// The page is newest-first; append keeps that order below the entries
	// already pushed.
	for _, entry := range page.Logs {
		if _, dup := f.seen[entry.ID]; dup {
			continue
		}
		if len(f.entries) == f.max {
			break
		}
		f.entries = append(f.entries, entry)
		f.seen[entry.ID] = struct{}{}
	}
	return nil
}

// Attach subscribes the feed to a socket's "log" messages.
func (f *LogFeed) Attach(s *Socket) {
	s.Subscribe("log", func(payload json.RawMessage) {
		var entry models.RequestLog
		if err := json.Unmarshal(payload, &entry); err != nil {
			logging.Debug().Err(err).Msg("log feed: malformed push payload")
			return
		}
		f.Push(entry)
	})
}

// Push prepends one entry, dropping duplicates and evicting the oldest
// entry when full.
func (f *LogFeed) Push(entry models.RequestLog) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[entry.ID]; dup {
		return false
	}
	if len(f.entries) == f.max {
		oldest := f.entries[len(f.entries)-1]
		delete(f.seen, oldest.ID)
		f.entries = f.entries[:len(f.entries)-1]
	}
	f.entries = append([]models.RequestLog{entry}, f.entries...)
	f.seen[entry.ID] = struct{}{}
	return true
}

// Snapshot returns the current entries, newest first.
func (f *LogFeed) Snapshot() []models.RequestLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RequestLog, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of buffered entries.
func (f *LogFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Clear drops all entries.
func (f *LogFeed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = f.entries[:0]
	f.seen = make(map[int64]struct{}, f.max)
}
