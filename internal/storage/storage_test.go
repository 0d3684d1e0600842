// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists plans, plan steps, tasks, and notes in SQLite.
package storage

import (
	"errors"
	"fmt"
	"testing"
)

// newTestStore opens an in-memory store that lives for one test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testPlan() *Plan {
	return &Plan{
		CompanyName:      "Acme",
		CompanyTitle:     "Support Lead",
		ShortDescription: "Handles tickets",
		Model:            "llama3.1:8b",
	}
}

// =============================================================================
// PLAN TESTS
// =============================================================================

func TestCreatePlan_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	id, err := store.CreatePlan(testPlan())
	if err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}
	if id == "" {
		t.Fatal("CreatePlan() returned empty ID")
	}

	got, err := store.GetPlan(id)
	if err != nil {
		t.Fatalf("GetPlan() error = %v", err)
	}
	if got.CompanyName != "Acme" {
		t.Errorf("CompanyName = %q, want 'Acme'", got.CompanyName)
	}
	if got.Status != "generating" {
		t.Errorf("Status = %q, want 'generating'", got.Status)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPlan("missing")
	if !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("GetPlan() error = %v, want ErrPlanNotFound", err)
	}
}

func TestUpdatePlanStatus(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.CreatePlan(testPlan())

	if err := store.UpdatePlanStatus(id, "ready"); err != nil {
		t.Fatalf("UpdatePlanStatus() error = %v", err)
	}

	got, _ := store.GetPlan(id)
	if got.Status != "ready" {
		t.Errorf("Status = %q, want 'ready'", got.Status)
	}

	if err := store.UpdatePlanStatus("missing", "ready"); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("UpdatePlanStatus(missing) error = %v, want ErrPlanNotFound", err)
	}
}

// =============================================================================
// STEP TESTS
// =============================================================================

func insertTestSteps(t *testing.T, store *Store, planID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		step := &Step{
			PlanID:     planID,
			StepKey:    stepKey(i),
			OrderIndex: i,
			Title:      "Placeholder",
		}
		if err := store.InsertStep(step); err != nil {
			t.Fatalf("InsertStep(%d) error = %v", i, err)
		}
	}
}

func stepKey(i int) string {
	return fmt.Sprintf("step_%d", i)
}

func TestInsertStep_PlaceholderDefaults(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())

	step := &Step{PlanID: planID, StepKey: "step_1", OrderIndex: 1, Title: "Meet the team"}
	if err := store.InsertStep(step); err != nil {
		t.Fatalf("InsertStep() error = %v", err)
	}

	got, err := store.GetStep(planID, "step_1")
	if err != nil {
		t.Fatalf("GetStep() error = %v", err)
	}
	if got.Status != "not_started" {
		t.Errorf("Status = %q, want 'not_started'", got.Status)
	}
	if got.Priority != "medium" {
		t.Errorf("Priority = %q, want 'medium'", got.Priority)
	}
	if got.Details != "" {
		t.Errorf("Details = %q, want empty placeholder", got.Details)
	}
}

func TestInsertStep_DuplicateKeyRejected(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())
	insertTestSteps(t, store, planID, 1)

	dup := &Step{PlanID: planID, StepKey: "step_1", OrderIndex: 9, Title: "Dup"}
	if err := store.InsertStep(dup); err == nil {
		t.Error("InsertStep() error = nil for duplicate step_key, want error")
	}
}

func TestUpdateStepContent(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())
	insertTestSteps(t, store, planID, 2)

	err := store.UpdateStepContent(&Step{
		PlanID:           planID,
		StepKey:          "step_2",
		Details:          "Shadow a senior agent for two ticket cycles.",
		SuccessCriteria:  "Resolved one ticket end to end.",
		Priority:         "high",
		EstimatedMinutes: 45,
		Status:           "not_started",
	})
	if err != nil {
		t.Fatalf("UpdateStepContent() error = %v", err)
	}

	got, _ := store.GetStep(planID, "step_2")
	if got.Details == "" || got.Priority != "high" || got.EstimatedMinutes != 45 {
		t.Errorf("step not updated: %+v", got)
	}
	// Identity fields untouched
	if got.Title != "Placeholder" || got.OrderIndex != 2 {
		t.Errorf("identity fields changed: %+v", got)
	}
}

func TestUpdateStepContent_NotFound(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())

	err := store.UpdateStepContent(&Step{PlanID: planID, StepKey: "step_9"})
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("UpdateStepContent() error = %v, want ErrStepNotFound", err)
	}
}

func TestInsertSteps_BulkAtomic(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())

	steps := []*Step{
		{PlanID: planID, StepKey: "step_1", OrderIndex: 1, Title: "A"},
		{PlanID: planID, StepKey: "step_2", OrderIndex: 2, Title: "B"},
		{PlanID: planID, StepKey: "step_2", OrderIndex: 3, Title: "C"}, // duplicate key
	}
	if err := store.InsertSteps(steps); err == nil {
		t.Fatal("InsertSteps() error = nil with duplicate key, want error")
	}

	// The failed transaction must leave nothing behind.
	got, err := store.ListSteps(planID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListSteps() returned %d rows after failed bulk insert, want 0", len(got))
	}
}

func TestDeleteSteps_ThenBulkInsert(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())
	insertTestSteps(t, store, planID, 3)

	if err := store.DeleteSteps(planID); err != nil {
		t.Fatalf("DeleteSteps() error = %v", err)
	}

	steps := []*Step{
		{PlanID: planID, StepKey: "step_1", OrderIndex: 1, Title: "A", Details: "d.", SuccessCriteria: "s."},
		{PlanID: planID, StepKey: "step_2", OrderIndex: 2, Title: "B", Details: "d.", SuccessCriteria: "s."},
		{PlanID: planID, StepKey: "step_3", OrderIndex: 3, Title: "C", Details: "d.", SuccessCriteria: "s."},
	}
	if err := store.InsertSteps(steps); err != nil {
		t.Fatalf("InsertSteps() error = %v", err)
	}

	got, _ := store.ListSteps(planID)
	if len(got) != 3 {
		t.Fatalf("ListSteps() = %d rows, want 3", len(got))
	}
	for i, step := range got {
		if step.OrderIndex != i+1 {
			t.Errorf("step %d out of order: OrderIndex = %d", i, step.OrderIndex)
		}
	}
}

// =============================================================================
// TASK AND NOTE TESTS
// =============================================================================

func TestInsertTask_ListTasks(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())

	if err := store.InsertTask(&Task{PlanID: planID, StepKey: "step_1", Title: "Do the thing"}); err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}

	tasks, err := store.ListTasks(planID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != "open" {
		t.Errorf("tasks = %+v, want one open task", tasks)
	}
}

func TestInsertNote(t *testing.T) {
	store := newTestStore(t)
	planID, _ := store.CreatePlan(testPlan())

	if err := store.InsertNote(&Note{PlanID: planID, Body: "plan applied as tasks"}); err != nil {
		t.Errorf("InsertNote() error = %v", err)
	}
}
