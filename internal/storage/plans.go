// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists plans, plan steps, tasks, and notes in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PLAN OPERATIONS
// =============================================================================

// CreatePlan inserts a plan record, assigning an ID and timestamps when
// unset, and returns the generated ID.
func (s *Store) CreatePlan(p *Plan) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = "generating"
	}

	_, err := s.db.Exec(
		`INSERT INTO plans (id, company_name, company_title, short_description, status, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyName, p.CompanyTitle, p.ShortDescription, p.Status, p.Model, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return "", wrap("insert plan", err)
	}

	return p.ID, nil
}

// GetPlan retrieves one plan by ID.
func (s *Store) GetPlan(id string) (*Plan, error) {
	var p Plan
	err := s.db.QueryRow(
		`SELECT id, company_name, company_title, short_description, status, model, created_at, updated_at
		 FROM plans WHERE id = ?`, id,
	).Scan(&p.ID, &p.CompanyName, &p.CompanyTitle, &p.ShortDescription, &p.Status, &p.Model, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, wrap("select plan", err)
	}
	return &p, nil
}

// UpdatePlanStatus sets a plan's status.
func (s *Store) UpdatePlanStatus(id, status string) error {
	res, err := s.db.Exec(
		`UPDATE plans SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return wrap("update plan status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// =============================================================================
// NOTE OPERATIONS
// =============================================================================

// InsertNote attaches an audit note to a plan.
func (s *Store) InsertNote(n *Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO notes (id, plan_id, body, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.PlanID, n.Body, n.CreatedAt,
	)
	if err != nil {
		return wrap("insert note", err)
	}
	return nil
}
