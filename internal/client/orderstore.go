// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// OrderStore persists manual list orderings to JSON files, one file per
// list name. Applying an order puts saved ids first; fetched ids the store
// has never seen keep their fetch order at the end. Saving drops ids that
// are no longer part of the list.
type OrderStore struct {
	dir string
	mu  sync.Mutex
}

// NewOrderStore creates a store rooted at dir, creating it if needed.
func NewOrderStore(dir string) (*OrderStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create order store dir: %w", err)
	}
	return &OrderStore{dir: dir}, nil
}

func (o *OrderStore) path(list string) string {
	return filepath.Join(o.dir, list+".json")
}

// load reads the saved order for a list. A missing file is an empty order.
func (o *OrderStore) load(list string) ([]string, error) {
	data, err := os.ReadFile(o.path(list))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order file: %w", err)
	}
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to parse order file: %w", err)
	}
	return order, nil
}

// Apply reorders fetched ids by the saved order: saved ids first (skipping
// any no longer present), then the rest in fetch order. A load failure
// falls back to the fetch order.
func (o *OrderStore) Apply(list string, fetched []string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	saved, err := o.load(list)
	if err != nil || len(saved) == 0 {
		out := make([]string, len(fetched))
		copy(out, fetched)
		return out
	}

	present := make(map[string]struct{}, len(fetched))
	for _, id := range fetched {
		present[id] = struct{}{}
	}

	out := make([]string, 0, len(fetched))
	placed := make(map[string]struct{}, len(fetched))
	for _, id := range saved {
		if _, ok := present[id]; !ok {
			continue // stale id, dropped on the next save
		}
		if _, dup := placed[id]; dup {
			continue
		}
		out = append(out, id)
		placed[id] = struct{}{}
	}
	for _, id := range fetched {
		if _, dup := placed[id]; dup {
			continue
		}
		out = append(out, id)
		placed[id] = struct{}{}
	}
	return out
}

// Save persists a new order, keeping only ids present in current. The file
// is written atomically via a temp file rename.
func (o *OrderStore) Save(list string, order, current []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	valid := make(map[string]struct{}, len(current))
	for _, id := range current {
		valid[id] = struct{}{}
	}
	kept := make([]string, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := valid[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		kept = append(kept, id)
		seen[id] = struct{}{}
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	tmp := o.path(list) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write order file: %w", err)
	}
	if err := os.Rename(tmp, o.path(list)); err != nil {
		return fmt.Errorf("failed to replace order file: %w", err)
	}
	return nil
}

// Delete removes a saved order.
func (o *OrderStore) Delete(list string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := os.Remove(o.path(list))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
