// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/models"
)

// InsertRequestLog persists one request log entry and fills in its
// sequence id and timestamp.
func (db *DB) InsertRequestLog(ctx context.Context, entry *models.RequestLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO request_logs
			(timestamp, method, path, status_code, duration_ms, client_ip,
			 request_headers, request_body, response_body, error_detail, account_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		entry.Timestamp, entry.Method, entry.Path, entry.StatusCode,
		entry.DurationMS, entry.ClientIP, entry.RequestHeaders,
		entry.RequestBody, entry.ResponseBody, entry.ErrorDetail, entry.AccountID).
		Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}

// ListRequestLogs returns one page of logs, newest first. A search term
// matches path and method as substrings; an all-digit term additionally
// matches the exact status code.
func (db *DB) ListRequestLogs(ctx context.Context, page, pageSize int, search string) (*models.RequestLogPage, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE (path ILIKE ? OR method ILIKE ?)`
		like := "%" + search + "%"
		args = append(args, like, like)
		if code, err := strconv.Atoi(search); err == nil {
			where = ` WHERE (path ILIKE ? OR method ILIKE ? OR status_code = ?)`
			args = append(args, code)
		}
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM request_logs`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count request logs: %w", err)
	}

	offset := (page - 1) * pageSize
	queryArgs := append(append([]interface{}{}, args...), pageSize, offset)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, timestamp, method, path, status_code, duration_ms, client_ip,
			request_headers, request_body, response_body, error_detail, account_id
		 FROM request_logs`+where+`
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	defer rows.Close()

	logs := []models.RequestLog{}
	for rows.Next() {
		var l models.RequestLog
		var accountID sql.NullString
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Method, &l.Path, &l.StatusCode,
			&l.DurationMS, &l.ClientIP, &l.RequestHeaders, &l.RequestBody,
			&l.ResponseBody, &l.ErrorDetail, &accountID); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		if accountID.Valid {
			if id, err := uuid.Parse(accountID.String); err == nil {
				l.AccountID = &id
			}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.RequestLogPage{
		Logs:     logs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ClearRequestLogs deletes all request logs.
func (db *DB) ClearRequestLogs(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM request_logs`); err != nil {
		return fmt.Errorf("failed to clear request logs: %w", err)
	}
	return nil
}

// CountRequestLogs returns the total number of request logs.
func (db *DB) CountRequestLogs(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM request_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count request logs: %w", err)
	}
	return n, nil
}
