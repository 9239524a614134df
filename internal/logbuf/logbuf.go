// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package logbuf holds the in-memory ring buffer for protocol proxy request
// logs. These are kept separate from the persisted management request logs:
// proxy traffic is high-volume and only the recent window matters.
package logbuf

import (
	"sync"
	"time"

	"github.com/nullgravity/nullgravity/internal/metrics"
	"github.com/nullgravity/nullgravity/internal/models"
)

// DefaultMaxEntries is the default ring capacity.
const DefaultMaxEntries = 500

// Buffer is a bounded ring of proxy log entries with a monotonic id
// counter. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []models.ProxyLogEntry
	max     int
	counter int64
	seen    map[int64]struct{}
}

// New creates a buffer with the given capacity. Non-positive capacities
// fall back to DefaultMaxEntries.
func New(maxEntries int) *Buffer {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Buffer{
		entries: make([]models.ProxyLogEntry, 0, maxEntries),
		max:     maxEntries,
		seen:    make(map[int64]struct{}, maxEntries),
	}
}

// Log assigns the next id and timestamp to the entry and appends it,
// evicting the oldest entry when full. The stored entry is returned.
func (b *Buffer) Log(entry models.ProxyLogEntry) models.ProxyLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counter++
	entry.ID = b.counter
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	b.appendLocked(entry)
	return entry
}

// Append adds an entry that already carries an id, preserving it. Entries
// whose id is already present are dropped; the counter advances past
// appended ids so later Log calls never collide.
func (b *Buffer) Append(entry models.ProxyLogEntry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.seen[entry.ID]; dup {
		return false
	}
	if entry.ID > b.counter {
		b.counter = entry.ID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	b.appendLocked(entry)
	return true
}

func (b *Buffer) appendLocked(entry models.ProxyLogEntry) {
	if len(b.entries) == b.max {
		delete(b.seen, b.entries[0].ID)
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
	}
	b.entries = append(b.entries, entry)
	b.seen[entry.ID] = struct{}{}
	metrics.ProxyLogEntries.Set(float64(len(b.entries)))
}

// Get returns a window of entries in reverse chronological order.
func (b *Buffer) Get(limit, offset int) []models.ProxyLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.entries)
	if offset >= n || limit <= 0 {
		return []models.ProxyLogEntry{}
	}

	end := n - offset
	start := end - limit
	if start < 0 {
		start = 0
	}

	out := make([]models.ProxyLogEntry, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, b.entries[i])
	}
	return out
}

// Count returns the number of buffered entries.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear drops all entries. The id counter keeps advancing.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
	b.seen = make(map[int64]struct{}, b.max)
	metrics.ProxyLogEntries.Set(0)
}
