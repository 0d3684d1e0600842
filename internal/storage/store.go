// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists plans, plan steps, tasks, and notes in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Sentinel errors for lookup misses.
var (
	ErrPlanNotFound = &StoreError{Message: "plan not found"}
	ErrStepNotFound = &StoreError{Message: "step not found"}
)

// =============================================================================
// MODELS
// =============================================================================

// Plan is a persisted onboarding plan record.
type Plan struct {
	ID               string    `json:"id"`
	CompanyName      string    `json:"company_name"`
	CompanyTitle     string    `json:"company_title"`
	ShortDescription string    `json:"short_description"`
	Status           string    `json:"status"` // "generating", "ready", "failed"
	Model            string    `json:"model"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Step is a persisted plan step. StepKey follows the positional step_<i>
// scheme and is unique within a plan.
type Step struct {
	ID               string    `json:"id"`
	PlanID           string    `json:"plan_id"`
	StepKey          string    `json:"step_key"`
	OrderIndex       int       `json:"order_index"` // 1-based outline position
	Title            string    `json:"title"`
	Details          string    `json:"details"`
	SuccessCriteria  string    `json:"success_criteria"`
	Priority         string    `json:"priority"` // "low", "medium", "high"
	EstimatedMinutes int       `json:"estimated_minutes"`
	Status           string    `json:"status"` // "not_started", "in_progress", "done"
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Task is an actionable item created by applying a plan.
type Task struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	StepKey   string    `json:"step_key"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes"`
	Status    string    `json:"status"` // "open", "done"
	CreatedAt time.Time `json:"created_at"`
}

// Note is a free-form audit note attached to a plan. Note writes are
// best-effort; callers log and ignore failures.
type Note struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// schema creates all tables on first open. Step content columns default to
// empty so placeholder rows can be inserted before generation fills them.
const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id                TEXT PRIMARY KEY,
	company_name      TEXT NOT NULL,
	company_title     TEXT NOT NULL,
	short_description TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'generating',
	model             TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS plan_steps (
	id                TEXT PRIMARY KEY,
	plan_id           TEXT NOT NULL REFERENCES plans(id),
	step_key          TEXT NOT NULL,
	order_index       INTEGER NOT NULL,
	title             TEXT NOT NULL,
	details           TEXT NOT NULL DEFAULT '',
	success_criteria  TEXT NOT NULL DEFAULT '',
	priority          TEXT NOT NULL DEFAULT 'medium',
	estimated_minutes INTEGER NOT NULL DEFAULT 30,
	status            TEXT NOT NULL DEFAULT 'not_started',
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL,
	UNIQUE(plan_id, step_key)
);

CREATE INDEX IF NOT EXISTS idx_plan_steps_plan ON plan_steps(plan_id, order_index);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	plan_id    TEXT NOT NULL REFERENCES plans(id),
	step_key   TEXT NOT NULL,
	title      TEXT NOT NULL,
	notes      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'open',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	plan_id    TEXT NOT NULL REFERENCES plans(id),
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &StoreError{Message: "failed to create database directory", Cause: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Message: "failed to open database", Cause: err}
	}

	// SQLite supports one writer; serialize access through a single
	// connection instead of surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StoreError{Message: "failed to connect to database", Cause: err}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, &StoreError{Message: "failed to enable foreign keys", Cause: err}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StoreError{Message: "failed to create schema", Cause: err}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// wrap converts a driver error into a StoreError with context.
func wrap(op string, err error) error {
	return &StoreError{Message: fmt.Sprintf("%s failed", op), Cause: err}
}
