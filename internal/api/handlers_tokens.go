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

// TokenList returns all API tokens, newest first. Token values are included:
// this is a loopback management surface and the UI offers copy-to-clipboard.
func (s *Server) TokenList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	tokens, err := s.db.ListTokens(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(tokens)
}

// TokenCreate creates a named token with a server-generated value.
func (s *Server) TokenCreate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var req models.APITokenCreate
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	token, err := s.db.CreateToken(r.Context(), req.Name)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:    models.EventTokenCreate,
		Level:   models.EventLevelSuccess,
		Message: fmt.Sprintf("API token %q created", token.Name),
	})
	rw.Created(token)
}

// TokenDelete removes a token.
func (s *Server) TokenDelete(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := s.db.DeleteToken(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			rw.NotFound("api token not found")
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]string{"deleted": id.String()})
}

// TokenToggle flips a token's active flag.
func (s *Server) TokenToggle(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	token, err := s.db.ToggleToken(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			rw.NotFound("api token not found")
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Success(token)
}

// TokenRegenerate replaces a token's value. The old value stops working
// immediately.
func (s *Server) TokenRegenerate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	token, err := s.db.RegenerateToken(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			rw.NotFound("api token not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:    models.EventTokenRegenerate,
		Level:   models.EventLevelWarning,
		Message: fmt.Sprintf("API token %q regenerated", token.Name),
	})
	rw.Success(token)
}
