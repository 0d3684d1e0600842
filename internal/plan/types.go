// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"strings"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Step priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Step status values.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Content field budgets, in runes.
const (
	maxDetailsLen  = 120
	maxCriteriaLen = 110
	maxSummaryLen  = 200
	maxListItemLen = 120
)

// Estimated-minutes bounds.
const (
	minEstimatedMinutes     = 10
	maxEstimatedMinutes     = 90
	defaultEstimatedMinutes = 30
)

// Event names pushed through an EventSink.
const (
	EventStatus = "status"
	EventToken  = "token"
	EventDone   = "done"
	EventError  = "error"
)

// =============================================================================
// REQUEST AND RESULT TYPES
// =============================================================================

// GenerateRequest carries the caller's inputs for one plan generation run.
type GenerateRequest struct {
	CompanyName      string `json:"company_name"`
	CompanyTitle     string `json:"company_title"`
	ShortDescription string `json:"short_description"`
}

// normalize trims all inputs in place.
func (r *GenerateRequest) normalize() {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.CompanyTitle = strings.TrimSpace(r.CompanyTitle)
	r.ShortDescription = strings.TrimSpace(r.ShortDescription)
}

// validate reports the first missing required input.
func (r *GenerateRequest) validate() error {
	switch {
	case r.CompanyName == "":
		return &ValidationError{Field: "company_name"}
	case r.CompanyTitle == "":
		return &ValidationError{Field: "company_title"}
	case r.ShortDescription == "":
		return &ValidationError{Field: "short_description"}
	}
	return nil
}

// Outline is the normalized result of the outline generation call.
// Keys are exactly step_1..step_N with no gaps or duplicates; they are
// derived positionally, never trusted verbatim from the generator.
type Outline struct {
	StepCount int
	Steps     []OutlineStep
}

// OutlineStep is one outline entry.
type OutlineStep struct {
	Key   string
	Title string
}

// StepContent is the normalized per-step generation result. Identity
// fields (key, title) are deliberately absent: they belong to the outline.
type StepContent struct {
	Details          string
	SuccessCriteria  string
	Priority         string
	EstimatedMinutes int
}

// Playbook is a deep-dive guide for one step. Not persisted.
type Playbook struct {
	PlanID  string   `json:"plan_id"`
	StepKey string   `json:"step_key"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
	Risks   []string `json:"risks"`
}

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationError reports a missing or empty required input. It maps to a
// client error at the HTTP boundary and is never retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

// =============================================================================
// EVENT SINK
// =============================================================================

// EventSink receives named events while a run executes. Implementations
// must tolerate being called from the run's goroutine and return quickly;
// the orchestrator treats emit failures as a disconnected observer, not a
// run failure.
type EventSink interface {
	Emit(event string, data any) error
}

// nullSink drops all events; used for buffered runs.
type nullSink struct{}

func (nullSink) Emit(string, any) error { return nil }
