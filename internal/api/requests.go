// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxRequestBodyBytes caps JSON request bodies. Account imports are the
// largest legitimate payload and stay well under this.
const maxRequestBodyBytes = 10 << 20 // 10 MB

// decodeJSON decodes a bounded JSON request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// uuidParam parses the {id} chi URL parameter.
func uuidParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// intQuery parses an integer query parameter with a default.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter %q", name, raw)
	}
	return v, nil
}

// pagination extracts page and page_size, clamped to the configured limits.
func (s *Server) pagination(r *http.Request) (page, pageSize int, err error) {
	page, err = intQuery(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		page = 1
	}
	pageSize, err = intQuery(r, "page_size", s.cfg.API.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if pageSize < 1 {
		pageSize = s.cfg.API.DefaultPageSize
	}
	if pageSize > s.cfg.API.MaxPageSize {
		pageSize = s.cfg.API.MaxPageSize
	}
	return page, pageSize, nil
}
