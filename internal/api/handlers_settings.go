// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"io/fs"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
	"github.com/nullgravity/nullgravity/internal/validation"
)

// settingsUpdateRequest is the PUT /api/settings payload: a batch of
// key/value pairs.
type settingsUpdateRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// SettingsGet returns the merged settings: stored rows over defaults, with
// data_dir forced to the runtime path.
func (s *Server) SettingsGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	settings, err := s.db.GetAllSettings(r.Context(), s.cfg.Server.DataDir)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(models.SettingsResponse{Settings: settings})
}

// SettingsUpdate upserts a batch of settings. Proxy keys re-arm the egress
// proxy monitor immediately, without a restart.
func (s *Server) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var req settingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}
	if _, ok := req.Settings[models.SettingDataDir]; ok {
		rw.BadRequest("data_dir is fixed at runtime and cannot be changed")
		return
	}

	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]models.SettingUpdate, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, models.SettingUpdate{Key: k, Value: req.Settings[k]})
	}
	if err := s.db.UpsertSettings(r.Context(), updates); err != nil {
		rw.DatabaseError(err)
		return
	}

	merged, err := s.db.GetAllSettings(r.Context(), s.cfg.Server.DataDir)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	_, urlChanged := req.Settings[models.SettingProxyURL]
	_, enabledChanged := req.Settings[models.SettingProxyEnabled]
	if urlChanged || enabledChanged {
		s.monitor.SetProxy(merged[models.SettingProxyURL], merged[models.SettingProxyEnabled] == "true")
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:    models.EventSettingsUpdate,
		Level:   models.EventLevelInfo,
		Message: "Settings updated",
	})
	rw.Success(models.SettingsResponse{Settings: merged})
}

// ProxyStatus returns the egress proxy probe result. Without force the
// cached result is served; force=true runs a fresh probe.
func (s *Server) ProxyStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	force := r.URL.Query().Get("force") == "true"
	status := s.monitor.Status(r.Context(), force)
	if force {
		rw.Success(status)
		return
	}
	rw.SuccessCached(status)
}

// StorageStats reports on-disk usage of the data directory.
func (s *Server) StorageStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	stats := models.StorageStats{
		DBSize:  s.db.FileSize(),
		DataDir: s.cfg.Server.DataDir,
	}
	stats.AvatarsSize = dirSize(s.cfg.Avatars.Path)
	stats.TotalSize = stats.DBSize + stats.AvatarsSize

	var err error
	if stats.LogsCount, err = s.db.CountRequestLogs(r.Context()); err != nil {
		rw.DatabaseError(err)
		return
	}
	if stats.EventsCount, err = s.db.CountEvents(r.Context()); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(stats)
}

// StorageClear drops the storage selected by the type query parameter:
// logs, events, avatars, or all. Accounts, mappings, tokens, and settings
// are never touched.
func (s *Server) StorageClear(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	kind := r.URL.Query().Get("type")
	clearLogs := kind == "logs" || kind == "all"
	clearEvents := kind == "events" || kind == "all"
	clearAvatars := kind == "avatars" || kind == "all"
	if !clearLogs && !clearEvents && !clearAvatars {
		rw.BadRequest("type must be one of logs, events, avatars, all")
		return
	}

	var cleared []string
	if clearLogs {
		if err := s.db.ClearRequestLogs(r.Context()); err != nil {
			rw.DatabaseError(err)
			return
		}
		cleared = append(cleared, "request_logs")
	}
	if clearEvents {
		if err := s.db.ClearEvents(r.Context()); err != nil {
			rw.DatabaseError(err)
			return
		}
		cleared = append(cleared, "events")
	}
	if clearAvatars {
		if err := s.avatars.Clear(); err != nil {
			rw.InternalError("failed to clear avatar cache")
			return
		}
		cleared = append(cleared, "avatars")
	}
	rw.Success(map[string]string{"cleared": strings.Join(cleared, ",")})
}

// dirSize sums file sizes under root. Unreadable entries are skipped.
func dirSize(root string) int64 {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are not fatal
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		logging.Debug().Err(err).Str("path", root).Msg("directory size walk failed")
	}
	return total
}
