// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package api provides the HTTP management surface: chi routing, the
// standard response envelope, and the handlers behind /api.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
	"github.com/nullgravity/nullgravity/internal/validation"
)

// Error codes used in the response envelope.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// ResponseWriter writes envelope-wrapped responses and tracks query time.
type ResponseWriter struct {
	w         http.ResponseWriter
	startTime time.Time
}

// NewResponseWriter creates a ResponseWriter anchored at the current time.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{w: w, startTime: time.Now()}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.write(http.StatusOK, data, false, nil)
}

// SuccessCached writes a 200 response flagged as served from cache.
func (rw *ResponseWriter) SuccessCached(data interface{}) {
	rw.write(http.StatusOK, data, true, nil)
}

// Created writes a 201 response with data.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.write(http.StatusCreated, data, false, nil)
}

// Error writes an error response with the given status and code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.write(statusCode, nil, false, &models.APIError{Code: code, Message: message})
}

// BadRequest writes a 400 error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound writes a 404 error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict writes a 409 error.
func (rw *ResponseWriter) Conflict(message string) {
	rw.Error(http.StatusConflict, ErrCodeConflict, message)
}

// DatabaseError logs the failure and writes a generic 500. The underlying
// error never reaches the client.
func (rw *ResponseWriter) DatabaseError(err error) {
	logging.Error().Err(err).Msg("database error")
	rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "A database error occurred")
}

// InternalError writes a 500 error.
func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ValidationError writes a 400 with the per-field failure details.
func (rw *ResponseWriter) ValidationError(verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	rw.write(http.StatusBadRequest, nil, false, &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

func (rw *ResponseWriter) write(statusCode int, data interface{}, cached bool, apiErr *models.APIError) {
	status := "success"
	if apiErr != nil {
		status = "error"
	}
	response := models.APIResponse{
		Status: status,
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
			Cached:      cached,
		},
		Error: apiErr,
	}

	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}
