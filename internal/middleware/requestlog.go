// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package middleware

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/logging"
	"github.com/nullgravity/nullgravity/internal/models"
)

// LogSink persists request log entries.
type LogSink interface {
	InsertRequestLog(ctx context.Context, entry *models.RequestLog) error
}

// LogBroadcaster pushes persisted entries to WebSocket subscribers.
type LogBroadcaster interface {
	BroadcastLog(entry *models.RequestLog)
}

// skippedPrefixes are paths excluded from request logging: the log surface
// itself (logging reads of logs feeds back on itself), health polls, the
// push channel, metrics scrapes, and avatar blobs.
var skippedPrefixes = []string{
	"/api/logs",
	"/api/health",
	"/api/ws",
	"/metrics",
}

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// RequestLogger captures each management request, persists it through sink,
// and broadcasts the stored entry. Bodies are truncated to maxBodyBytes;
// authorization and cookie headers are redacted.
func RequestLogger(sink LogSink, broadcaster LogBroadcaster, maxBodyBytes int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLogging(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			var requestBody []byte
			if r.Body != nil {
				requestBody, _ = io.ReadAll(io.LimitReader(r.Body, int64(maxBodyBytes)+1))
				rest, _ := io.ReadAll(r.Body)
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), bytes.NewReader(rest)))
			}

			recorder := &bodyRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				maxBody:        maxBodyBytes,
			}

			next.ServeHTTP(recorder, r)

			entry := &models.RequestLog{
				Timestamp:      start.UTC(),
				Method:         r.Method,
				Path:           r.URL.Path,
				StatusCode:     recorder.statusCode,
				DurationMS:     float64(time.Since(start).Microseconds()) / 1000.0,
				ClientIP:       clientIP(r),
				RequestHeaders: redactedHeaders(r.Header),
				RequestBody:    truncate(string(requestBody), maxBodyBytes),
				ResponseBody:   truncate(recorder.body.String(), maxBodyBytes),
				AccountID:      accountIDFromPath(r.URL.Path),
			}
			if recorder.statusCode >= 400 {
				entry.ErrorDetail = truncate(recorder.body.String(), maxBodyBytes)
			}

			// Persist and broadcast off the request path; a slow disk must
			// not add latency to the response.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := sink.InsertRequestLog(ctx, entry); err != nil {
					logging.Warn().Err(err).Msg("failed to persist request log")
					return
				}
				if broadcaster != nil {
					broadcaster.BroadcastLog(entry)
				}
			}()
		})
	}
}

func skipLogging(path string) bool {
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	// Avatar blobs are fetched on every dashboard render.
	if strings.HasPrefix(path, "/api/accounts/") && strings.HasSuffix(path, "/avatar") {
		return true
	}
	return false
}

// redactedHeaders serializes headers to JSON with credentials removed.
func redactedHeaders(h http.Header) string {
	redacted := make(map[string]string, len(h))
	for k, v := range h {
		key := strings.ToLower(k)
		if key == "authorization" || key == "cookie" {
			redacted[key] = "[REDACTED]"
			continue
		}
		redacted[key] = strings.Join(v, ", ")
	}
	data, err := json.Marshal(redacted)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// accountIDFromPath pulls the account UUID out of account-scoped paths.
func accountIDFromPath(path string) *uuid.UUID {
	if !strings.HasPrefix(path, "/api/accounts/") {
		return nil
	}
	match := uuidPattern.FindString(path)
	if match == "" {
		return nil
	}
	id, err := uuid.Parse(match)
	if err != nil {
		return nil
	}
	return &id
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

// bodyRecorder captures the status code and a bounded copy of the body.
type bodyRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	maxBody    int
}

func (rw *bodyRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *bodyRecorder) Write(b []byte) (int, error) {
	if rw.body.Len() < rw.maxBody {
		remaining := rw.maxBody - rw.body.Len()
		if remaining > len(b) {
			remaining = len(b)
		}
		rw.body.Write(b[:remaining])
	}
	return rw.ResponseWriter.Write(b)
}
