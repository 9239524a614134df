// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package avatar caches account avatar images in a local BadgerDB store.
// Images are downloaded once (rate-limited) and served from the cache with
// long-lived cache headers afterwards.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/time/rate"

	"github.com/nullgravity/nullgravity/internal/config"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/metrics"
)

// Store errors
var (
	ErrNotCached      = errors.New("avatar not cached")
	ErrNoAvatarURL    = errors.New("account has no avatar url")
	ErrDownloadFailed = errors.New("avatar download failed")
)

const (
	avatarKeyPrefix = "avatar:"
	typeKeyPrefix   = "avatar_type:"

	// maxAvatarBytes caps a single cached image.
	maxAvatarBytes = 5 << 20 // 5 MB
)

// Store is the badger-backed avatar cache with a rate-limited downloader.
type Store struct {
	db      *badger.DB
	client  *http.Client
	limiter *rate.Limiter
}

// New opens the cache at cfg.Path.
func New(cfg config.AvatarConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open avatar cache: %w", err)
	}

	downloadRate := cfg.DownloadRate
	if downloadRate <= 0 {
		downloadRate = 1
	}
	burst := cfg.DownloadBurst
	if burst <= 0 {
		burst = 1
	}

	return &Store{
		db:      db,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(downloadRate), burst),
	}, nil
}

// Close closes the underlying badger store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached image bytes and content type for an account id.
func (s *Store) Get(accountID string) ([]byte, string, error) {
	var data []byte
	contentType := "image/png"

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(avatarKeyPrefix + accountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotCached
		}
		if err != nil {
			return fmt.Errorf("get avatar: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		typeItem, err := txn.Get([]byte(typeKeyPrefix + accountID))
		if err == nil {
			_ = typeItem.Value(func(val []byte) error {
				contentType = string(val)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotCached) {
			metrics.AvatarCacheMisses.Inc()
		}
		return nil, "", err
	}

	metrics.AvatarCacheHits.Inc()
	return data, contentType, nil
}

// Has reports whether an avatar is cached for the account.
func (s *Store) Has(accountID string) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(avatarKeyPrefix + accountID))
		return err
	})
	return err == nil
}

// Put stores image bytes for an account.
func (s *Store) Put(accountID string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "image/png"
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(avatarKeyPrefix+accountID), data); err != nil {
			return err
		}
		return txn.Set([]byte(typeKeyPrefix+accountID), []byte(contentType))
	})
	if err != nil {
		return fmt.Errorf("failed to store avatar: %w", err)
	}
	return nil
}

// Delete removes a cached avatar.
func (s *Store) Delete(accountID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(avatarKeyPrefix + accountID)); err != nil {
			return err
		}
		return txn.Delete([]byte(typeKeyPrefix + accountID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete avatar: %w", err)
	}
	return nil
}

// Clear removes all cached avatars.
func (s *Store) Clear() error {
	return s.db.DropAll()
}

// Download fetches the avatar from avatarURL, subject to the rate limiter,
// and caches it under accountID. Returns the stored bytes.
func (s *Store) Download(ctx context.Context, accountID, avatarURL string) ([]byte, string, error) {
	if avatarURL == "" {
		return nil, "", ErrNoAvatarURL
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("download rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.AvatarDownloads.WithLabelValues("failed").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.AvatarDownloads.WithLabelValues("failed").Inc()
		return nil, "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes+1))
	if err != nil {
		metrics.AvatarDownloads.WithLabelValues("failed").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if len(data) > maxAvatarBytes {
		metrics.AvatarDownloads.WithLabelValues("failed").Inc()
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrDownloadFailed, maxAvatarBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if err := s.Put(accountID, data, contentType); err != nil {
		return nil, "", err
	}

	metrics.AvatarDownloads.WithLabelValues("ok").Inc()
	logging.Debug().
		Str("account_id", accountID).
		Int("bytes", len(data)).
		Msg("avatar downloaded and cached")
	return data, contentType, nil
}
