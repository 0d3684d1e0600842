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
// STEP OPERATIONS
// =============================================================================

const stepColumns = `id, plan_id, step_key, order_index, title, details, success_criteria,
	priority, estimated_minutes, status, created_at, updated_at`

// InsertStep inserts one step row. Content fields may be empty; placeholder
// rows are inserted before generation fills them.
func (s *Store) InsertStep(step *Step) error {
	prepareStep(step)

	_, err := s.db.Exec(
		`INSERT INTO plan_steps (`+stepColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.PlanID, step.StepKey, step.OrderIndex, step.Title, step.Details,
		step.SuccessCriteria, step.Priority, step.EstimatedMinutes, step.Status,
		step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		return wrap("insert step", err)
	}
	return nil
}

// InsertSteps writes a whole step set in one transaction. Either every row
// lands or none does; this backs the bulk-insert fallback, which must never
// leave a partially written plan visible.
func (s *Store) InsertSteps(steps []*Step) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrap("begin bulk insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO plan_steps (` + stepColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return wrap("prepare bulk insert", err)
	}
	defer stmt.Close()

	for _, step := range steps {
		prepareStep(step)
		if _, err := stmt.Exec(
			step.ID, step.PlanID, step.StepKey, step.OrderIndex, step.Title, step.Details,
			step.SuccessCriteria, step.Priority, step.EstimatedMinutes, step.Status,
			step.CreatedAt, step.UpdatedAt,
		); err != nil {
			return wrap("bulk insert step", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap("commit bulk insert", err)
	}
	return nil
}

// UpdateStepContent updates the generated content fields of one step,
// identified by plan ID and step key. Identity fields (step_key, title,
// order_index) are never touched here.
func (s *Store) UpdateStepContent(step *Step) error {
	res, err := s.db.Exec(
		`UPDATE plan_steps
		 SET details = ?, success_criteria = ?, priority = ?, estimated_minutes = ?, status = ?, updated_at = ?
		 WHERE plan_id = ? AND step_key = ?`,
		step.Details, step.SuccessCriteria, step.Priority, step.EstimatedMinutes, step.Status,
		time.Now().UTC(), step.PlanID, step.StepKey,
	)
	if err != nil {
		return wrap("update step", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStepNotFound
	}
	return nil
}

// DeleteSteps removes all step rows for a plan.
func (s *Store) DeleteSteps(planID string) error {
	if _, err := s.db.Exec(`DELETE FROM plan_steps WHERE plan_id = ?`, planID); err != nil {
		return wrap("delete steps", err)
	}
	return nil
}

// GetStep retrieves one step by plan ID and step key.
func (s *Store) GetStep(planID, stepKey string) (*Step, error) {
	row := s.db.QueryRow(
		`SELECT `+stepColumns+` FROM plan_steps WHERE plan_id = ? AND step_key = ?`,
		planID, stepKey,
	)

	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStepNotFound
		}
		return nil, wrap("select step", err)
	}
	return step, nil
}

// ListSteps returns all steps of a plan ordered by outline position.
func (s *Store) ListSteps(planID string) ([]*Step, error) {
	rows, err := s.db.Query(
		`SELECT `+stepColumns+` FROM plan_steps WHERE plan_id = ? ORDER BY order_index`,
		planID,
	)
	if err != nil {
		return nil, wrap("select steps", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, wrap("scan step", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate steps", err)
	}
	return steps, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// prepareStep fills identity and timestamp defaults before an insert.
func prepareStep(step *Step) {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if step.CreatedAt.IsZero() {
		step.CreatedAt = now
	}
	step.UpdatedAt = now
	if step.Priority == "" {
		step.Priority = "medium"
	}
	if step.Status == "" {
		step.Status = "not_started"
	}
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStep(row scanner) (*Step, error) {
	var step Step
	err := row.Scan(
		&step.ID, &step.PlanID, &step.StepKey, &step.OrderIndex, &step.Title, &step.Details,
		&step.SuccessCriteria, &step.Priority, &step.EstimatedMinutes, &step.Status,
		&step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &step, nil
}
