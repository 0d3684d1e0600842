// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ramp/internal/storage"
)

// seedPlan inserts a ready plan with two finished steps and returns its ID.
func seedPlan(t *testing.T, store *storage.Store) string {
	t.Helper()

	planID, err := store.CreatePlan(&storage.Plan{
		CompanyName:      "Acme",
		CompanyTitle:     "Support Lead",
		ShortDescription: "Handles tickets",
		Status:           "ready",
		Model:            "step-model",
	})
	require.NoError(t, err)

	steps := []*storage.Step{
		{
			PlanID: planID, StepKey: "step_1", OrderIndex: 1,
			Title: "Meet the support team", Details: "Attend the weekly standup.",
			SuccessCriteria: "Knows every team member by name.", Priority: PriorityMedium,
			EstimatedMinutes: 30, Status: StatusNotStarted,
		},
		{
			PlanID: planID, StepKey: "step_2", OrderIndex: 2,
			Title: "Learn the ticket system", Details: "Complete the training course.",
			SuccessCriteria: "Can triage a ticket unassisted.", Priority: PriorityHigh,
			EstimatedMinutes: 60, Status: StatusNotStarted,
		},
	}
	require.NoError(t, store.InsertSteps(steps))
	return planID
}

// =============================================================================
// REGENERATE STEP TESTS
// =============================================================================

func TestRegenerateStep_UpdatesContentKeepsIdentity(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)

	payload := stepPayload("Pair with a senior agent on live tickets")
	payload["step_key"] = "step_9" // wrong echo, must be ignored
	payload["title"] = "Hijacked"
	caller := &fakeCaller{payloads: []map[string]any{payload}}
	orch := NewOrchestrator(caller, store, testConfig(), nil)

	step, err := orch.RegenerateStep(context.Background(), planID, "step_2", nil)

	require.NoError(t, err)
	assert.Equal(t, "step_2", step.StepKey)
	assert.Equal(t, "Learn the ticket system", step.Title)
	assert.Equal(t, "Pair with a senior agent on live tickets.", step.Details)

	persisted, err := store.GetStep(planID, "step_2")
	require.NoError(t, err)
	assert.Equal(t, "Learn the ticket system", persisted.Title)
	assert.Equal(t, "Pair with a senior agent on live tickets.", persisted.Details)

	// The untouched step keeps its original content.
	other, err := store.GetStep(planID, "step_1")
	require.NoError(t, err)
	assert.Equal(t, "Attend the weekly standup.", other.Details)
}

func TestRegenerateStep_UnknownStep(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)
	orch := NewOrchestrator(&fakeCaller{}, store, testConfig(), nil)

	_, err := orch.RegenerateStep(context.Background(), planID, "step_7", nil)
	assert.True(t, errors.Is(err, storage.ErrStepNotFound))
}

func TestRegenerateStep_UnknownPlan(t *testing.T) {
	store := testStore(t)
	orch := NewOrchestrator(&fakeCaller{}, store, testConfig(), nil)

	_, err := orch.RegenerateStep(context.Background(), "missing", "step_1", nil)
	assert.True(t, errors.Is(err, storage.ErrPlanNotFound))
}

func TestRegenerateStep_LookupFailure_StreamedRunStillGetsErrorEvent(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)
	orch := NewOrchestrator(&fakeCaller{}, store, testConfig(), nil)
	sink := &recordingSink{}

	_, err := orch.RegenerateStep(context.Background(), planID, "step_7", sink)

	require.Error(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventError, sink.events[0].name)
	ev := sink.events[0].data.(errorEvent)
	assert.Equal(t, planID, ev.PlanID)
	assert.NotEmpty(t, ev.Message)
}

// =============================================================================
// PLAYBOOK TESTS
// =============================================================================

func TestPlaybook_ReturnsGuideWithoutPersisting(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)

	caller := &fakeCaller{payloads: []map[string]any{{
		"summary": "Get hands-on with the live ticket queue",
		"actions": []any{"Open the queue dashboard", "Triage five tickets", "Review with your buddy"},
		"risks":   []any{"Stale filters hide aged tickets"},
	}}}
	orch := NewOrchestrator(caller, store, testConfig(), nil)

	pb, err := orch.Playbook(context.Background(), planID, "step_2")

	require.NoError(t, err)
	assert.Equal(t, planID, pb.PlanID)
	assert.Equal(t, "step_2", pb.StepKey)
	assert.Equal(t, "Learn the ticket system", pb.Title)
	assert.Equal(t, "Get hands-on with the live ticket queue.", pb.Summary)
	assert.Len(t, pb.Actions, 3)
	assert.Len(t, pb.Risks, 1)

	// Playbooks are ephemeral; the stored step stays untouched.
	persisted, err := store.GetStep(planID, "step_2")
	require.NoError(t, err)
	assert.Equal(t, "Complete the training course.", persisted.Details)
}

func TestPlaybook_EmptySummaryFails(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)

	caller := &fakeCaller{payloads: []map[string]any{{
		"summary": "  <|endoftext|>  ",
		"actions": []any{"Do something"},
	}}}
	orch := NewOrchestrator(caller, store, testConfig(), nil)

	_, err := orch.Playbook(context.Background(), planID, "step_1")
	require.Error(t, err)
}

func TestPlaybook_NoActionsFails(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)

	caller := &fakeCaller{payloads: []map[string]any{{
		"summary": "A perfectly fine summary",
		"actions": []any{},
	}}}
	orch := NewOrchestrator(caller, store, testConfig(), nil)

	_, err := orch.Playbook(context.Background(), planID, "step_1")
	require.Error(t, err)
}

// =============================================================================
// APPLY TESTS
// =============================================================================

func TestApply_CreatesOneTaskPerStep(t *testing.T) {
	store := testStore(t)
	planID := seedPlan(t, store)
	orch := NewOrchestrator(&fakeCaller{}, store, testConfig(), nil)

	tasks, err := orch.Apply(planID)

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Meet the support team", tasks[0].Title)
	assert.Equal(t, "open", tasks[0].Status)
	assert.Contains(t, tasks[1].Notes, "Can triage a ticket unassisted.")

	persisted, err := store.ListTasks(planID)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestApply_PlanNotReady(t *testing.T) {
	store := testStore(t)
	planID, err := store.CreatePlan(&storage.Plan{
		CompanyName: "Acme", CompanyTitle: "x", ShortDescription: "y",
		Status: "generating", Model: "m",
	})
	require.NoError(t, err)

	orch := NewOrchestrator(&fakeCaller{}, store, testConfig(), nil)
	_, err = orch.Apply(planID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestApply_UnknownPlan(t *testing.T) {
	store := testStore(t)
	orch := NewOrchestrator(&fakeCaller{}, store, testConfig(), nil)

	_, err := orch.Apply("missing")
	assert.True(t, errors.Is(err, storage.ErrPlanNotFound))
}
