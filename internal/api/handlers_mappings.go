// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/models"
	"github.com/nullgravity/nullgravity/internal/validation"
)

// MappingList returns all model mappings in priority order.
func (s *Server) MappingList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	mappings, err := s.db.ListMappings(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(mappings)
}

// MappingCreate adds a mapping. Without an explicit priority the mapping is
// appended after the current lowest-priority entry.
func (s *Server) MappingCreate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var req models.ModelMappingCreate
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	mapping, err := s.db.CreateMapping(r.Context(), &req)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(mapping)
}

// MappingUpdate applies a partial update.
func (s *Server) MappingUpdate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	var req models.ModelMappingUpdate
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	mapping, err := s.db.UpdateMapping(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, database.ErrMappingNotFound) {
			rw.NotFound("model mapping not found")
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Success(mapping)
}

// MappingDelete removes a mapping.
func (s *Server) MappingDelete(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := s.db.DeleteMapping(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrMappingNotFound) {
			rw.NotFound("model mapping not found")
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]string{"deleted": id.String()})
}

// MappingReorder applies a batch of new priorities atomically. An unknown
// mapping id rolls the whole batch back.
func (s *Server) MappingReorder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var req models.ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	if err := s.db.ReorderMappings(r.Context(), req.Orders); err != nil {
		if errors.Is(err, database.ErrMappingNotFound) {
			rw.NotFound("model mapping not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:    models.EventMappingReordered,
		Level:   models.EventLevelInfo,
		Message: fmt.Sprintf("Reordered %d model mappings", len(req.Orders)),
	})

	mappings, err := s.db.ListMappings(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(mappings)
}
