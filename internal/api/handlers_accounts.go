// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/database"
	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
	"github.com/nullgravity/nullgravity/internal/validation"
)

// accountListResponse wraps the account list with its total.
type accountListResponse struct {
	Total    int              `json:"total"`
	Accounts []models.Account `json:"accounts"`
}

// AccountList returns all accounts ordered by creation time.
func (s *Server) AccountList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	accounts, err := s.db.ListAccounts(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(accountListResponse{Total: len(accounts), Accounts: accounts})
}

// AccountCreate creates an account from an AccountCreate payload.
func (s *Server) AccountCreate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var req models.AccountCreate
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	acc := &models.Account{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Provider:    req.Provider,
		Label:       req.Label,
		Tier:        req.Tier,
	}
	if err := s.db.CreateAccount(r.Context(), acc); err != nil {
		if errors.Is(err, database.ErrEmailConflict) {
			rw.Conflict(err.Error())
			return
		}
		rw.DatabaseError(err)
		return
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:      models.EventAccountCreate,
		Level:     models.EventLevelSuccess,
		Message:   fmt.Sprintf("Account %s added", acc.Email),
		AccountID: &acc.ID,
	})
	rw.Created(acc)
}

// AccountGet returns one account by id.
func (s *Server) AccountGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	acc, err := s.db.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			rw.NotFound("account not found")
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Success(acc)
}

// AccountUpdate applies a partial update.
func (s *Server) AccountUpdate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	var req models.AccountUpdate
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	acc, err := s.db.UpdateAccount(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			rw.NotFound("account not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	// A changed avatar URL invalidates the cached image.
	if req.AvatarURL != nil && !acc.AvatarCached {
		if err := s.avatars.Delete(id.String()); err != nil {
			logging.Warn().Err(err).Str("account_id", id.String()).Msg("failed to drop stale avatar")
		}
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:      models.EventAccountUpdate,
		Level:     models.EventLevelInfo,
		Message:   fmt.Sprintf("Account %s updated", acc.Email),
		AccountID: &acc.ID,
	})
	rw.Success(acc)
}

// AccountDelete removes an account and its cached avatar.
func (s *Server) AccountDelete(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	id, err := uuidParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	acc, err := s.db.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			rw.NotFound("account not found")
			return
		}
		rw.DatabaseError(err)
		return
	}
	if err := s.db.DeleteAccount(r.Context(), id); err != nil {
		rw.DatabaseError(err)
		return
	}
	if err := s.avatars.Delete(id.String()); err != nil {
		logging.Warn().Err(err).Str("account_id", id.String()).Msg("failed to drop avatar")
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:    models.EventAccountDelete,
		Level:   models.EventLevelWarning,
		Message: fmt.Sprintf("Account %s removed", acc.Email),
	})
	rw.Success(map[string]string{"deleted": id.String()})
}

// AccountAvatar serves the cached avatar image. On a cache miss the client
// is redirected to the origin URL while the image is cached in the
// background for the next request.
func (s *Server) AccountAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r)
	if err != nil {
		NewResponseWriter(w).BadRequest(err.Error())
		return
	}
	acc, err := s.db.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			NewResponseWriter(w).NotFound("account not found")
			return
		}
		NewResponseWriter(w).DatabaseError(err)
		return
	}

	if data, contentType, err := s.avatars.Get(id.String()); err == nil {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = w.Write(data)
		return
	}

	if acc.AvatarURL == "" {
		NewResponseWriter(w).NotFound("account has no avatar")
		return
	}

	go s.cacheAvatar(acc.ID, acc.AvatarURL)
	http.Redirect(w, r, acc.AvatarURL, http.StatusFound)
}

// cacheAvatar downloads and stores the avatar off the request path.
func (s *Server) cacheAvatar(id uuid.UUID, avatarURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, _, err := s.avatars.Download(ctx, id.String(), avatarURL); err != nil {
		logging.Warn().Err(err).Str("account_id", id.String()).Msg("avatar download failed")
		return
	}
	if err := s.db.SetAvatarCached(ctx, id, true); err != nil {
		logging.Warn().Err(err).Str("account_id", id.String()).Msg("failed to flag avatar cached")
	}
}

// accountExportRequest optionally narrows an export to specific accounts.
// An empty body or empty list exports everything.
type accountExportRequest struct {
	AccountIDs []uuid.UUID `json:"account_ids"`
}

// AccountExport serves accounts as a downloadable JSON document.
func (s *Server) AccountExport(w http.ResponseWriter, r *http.Request) {
	var req accountExportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			NewResponseWriter(w).BadRequest(err.Error())
			return
		}
	}

	accounts, err := s.db.ListAccounts(r.Context())
	if err != nil {
		NewResponseWriter(w).DatabaseError(err)
		return
	}
	if len(req.AccountIDs) > 0 {
		wanted := make(map[uuid.UUID]struct{}, len(req.AccountIDs))
		for _, id := range req.AccountIDs {
			wanted[id] = struct{}{}
		}
		selected := accounts[:0]
		for _, acc := range accounts {
			if _, ok := wanted[acc.ID]; ok {
				selected = append(selected, acc)
			}
		}
		accounts = selected
	}

	export := models.AccountExport{
		Version:    1,
		ExportedAt: time.Now().UTC(),
		Accounts:   accounts,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="nullgravity-accounts.json"`)
	if err := json.NewEncoder(w).Encode(export); err != nil {
		logging.Error().Err(err).Msg("failed to encode account export")
	}
}

// AccountImport ingests a previously exported document. Accounts whose
// email already exists are skipped, not overwritten.
func (s *Server) AccountImport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)

	var doc models.AccountExport
	if err := decodeJSON(r, &doc); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if len(doc.Accounts) == 0 {
		rw.BadRequest("no accounts in import document")
		return
	}

	result := models.ImportResult{}
	for i := range doc.Accounts {
		acc := doc.Accounts[i]
		// Imported rows get fresh ids; cached-avatar state does not travel.
		acc.ID = uuid.Nil
		acc.AvatarCached = false

		err := s.db.CreateAccount(r.Context(), &acc)
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, database.ErrEmailConflict):
			result.Skipped++
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", acc.Email, err))
		}
	}

	s.recordEvent(r.Context(), &models.Event{
		Type:    models.EventAccountImport,
		Level:   models.EventLevelInfo,
		Message: fmt.Sprintf("Imported %d accounts (%d skipped)", result.Imported, result.Skipped),
	})
	rw.Success(result)
}

// recordEvent persists a business event and pushes it to subscribers.
func (s *Server) recordEvent(ctx context.Context, evt *models.Event) {
	if err := s.db.InsertEvent(ctx, evt); err != nil {
		logging.Warn().Err(err).Str("type", evt.Type).Msg("failed to record event")
		return
	}
	s.hub.BroadcastEvent(evt)
}
