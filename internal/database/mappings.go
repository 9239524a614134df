// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nullgravity/nullgravity/internal/models"
)

// ErrMappingNotFound is returned when a model mapping does not exist.
var ErrMappingNotFound = errors.New("model mapping not found")

// ListMappings returns all mappings ordered by (priority, created_at).
// Lower priority numbers match first.
func (db *DB) ListMappings(ctx context.Context) ([]models.ModelMapping, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, pattern, target, is_active, priority, created_at
		 FROM model_mappings ORDER BY priority, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	mappings := []models.ModelMapping{}
	for rows.Next() {
		var m models.ModelMapping
		if err := rows.Scan(&m.ID, &m.Pattern, &m.Target, &m.IsActive, &m.Priority, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// CreateMapping inserts a new mapping. When no priority is given it is
// appended after the current maximum.
func (db *DB) CreateMapping(ctx context.Context, req *models.ModelMappingCreate) (*models.ModelMapping, error) {
	m := &models.ModelMapping{
		ID:        uuid.New(),
		Pattern:   req.Pattern,
		Target:    req.Target,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		m.Priority = *req.Priority
	} else {
		var maxPriority sql.NullInt64
		err := db.conn.QueryRowContext(ctx,
			`SELECT MAX(priority) FROM model_mappings`).Scan(&maxPriority)
		if err != nil {
			return nil, fmt.Errorf("failed to determine next priority: %w", err)
		}
		if maxPriority.Valid {
			m.Priority = int(maxPriority.Int64) + 1
		}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO model_mappings (id, pattern, target, is_active, priority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Pattern, m.Target, m.IsActive, m.Priority, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create mapping: %w", err)
	}
	return m, nil
}

// UpdateMapping applies a partial update and returns the updated mapping.
func (db *DB) UpdateMapping(ctx context.Context, id uuid.UUID, upd *models.ModelMappingUpdate) (*models.ModelMapping, error) {
	m, err := db.getMapping(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Pattern != nil {
		m.Pattern = *upd.Pattern
	}
	if upd.Target != nil {
		m.Target = *upd.Target
	}
	if upd.IsActive != nil {
		m.IsActive = *upd.IsActive
	}
	if upd.Priority != nil {
		m.Priority = *upd.Priority
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE model_mappings SET pattern = ?, target = ?, is_active = ?, priority = ?
		 WHERE id = ?`,
		m.Pattern, m.Target, m.IsActive, m.Priority, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}
	return m, nil
}

// DeleteMapping removes a mapping.
func (db *DB) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM model_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// ReorderMappings applies a batch of priority assignments in one
// transaction. Unknown ids fail the whole batch.
func (db *DB) ReorderMappings(ctx context.Context, orders []models.MappingOrder) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range orders {
		res, err := tx.ExecContext(ctx,
			`UPDATE model_mappings SET priority = ? WHERE id = ?`, o.Priority, o.ID)
		if err != nil {
			return fmt.Errorf("failed to reorder mapping %s: %w", o.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrMappingNotFound, o.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

func (db *DB) getMapping(ctx context.Context, id uuid.UUID) (*models.ModelMapping, error) {
	m := &models.ModelMapping{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, pattern, target, is_active, priority, created_at
		 FROM model_mappings WHERE id = ?`, id).
		Scan(&m.ID, &m.Pattern, &m.Target, &m.IsActive, &m.Priority, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, nil
}
