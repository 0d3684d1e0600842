// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists plans, plan steps, tasks, and notes in SQLite.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK OPERATIONS
// =============================================================================

// InsertTask inserts one actionable task created from a plan step.
func (s *Store) InsertTask(t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = "open"
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, plan_id, step_key, title, notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PlanID, t.StepKey, t.Title, t.Notes, t.Status, t.CreatedAt,
	)
	if err != nil {
		return wrap("insert task", err)
	}
	return nil
}

// ListTasks returns all tasks for a plan in creation order.
func (s *Store) ListTasks(planID string) ([]*Task, error) {
	rows, err := s.db.Query(
		`SELECT id, plan_id, step_key, title, notes, status, created_at
		 FROM tasks WHERE plan_id = ? ORDER BY created_at, id`,
		planID,
	)
	if err != nil {
		return nil, wrap("select tasks", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.PlanID, &t.StepKey, &t.Title, &t.Notes, &t.Status, &t.CreatedAt); err != nil {
			return nil, wrap("scan task", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate tasks", err)
	}
	return tasks, nil
}
