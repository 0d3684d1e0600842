// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"fmt"

	"github.com/jeranaias/ramp/internal/ollama"
	"github.com/jeranaias/ramp/internal/storage"
	"github.com/jeranaias/ramp/internal/structured"
)

// =============================================================================
// STEP REGENERATION
// =============================================================================

// RegenerateStep re-runs content generation for one existing step and
// updates it in place. The stored step's key and title stay authoritative.
// A nil sink selects a buffered run.
func (o *Orchestrator) RegenerateStep(ctx context.Context, planID, stepKey string, sink EventSink) (step *storage.Step, err error) {
	streaming := sink != nil
	if sink == nil {
		sink = nullSink{}
	}
	cfg := o.cfg.Current()

	// Every failure surfaces as a terminal error event, lookup failures
	// included, so a streamed regeneration never closes silently.
	defer func() {
		if err != nil {
			o.emit(sink, EventError, errorEvent{PlanID: planID, Message: err.Error()})
		}
	}()

	record, err := o.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	step, err = o.store.GetStep(planID, stepKey)
	if err != nil {
		return nil, err
	}

	req := GenerateRequest{
		CompanyName:      record.CompanyName,
		CompanyTitle:     record.CompanyTitle,
		ShortDescription: record.ShortDescription,
	}
	outlineStep := OutlineStep{Key: step.StepKey, Title: step.Title}

	o.emit(sink, EventStatus, statusEvent{
		PlanID:  planID,
		Stage:   "step",
		StepKey: step.StepKey,
		Title:   step.Title,
	})

	content, err := o.generateStep(ctx, cfg, req, outlineStep, streaming, sink)
	if err != nil {
		return nil, err
	}

	step.Details = content.Details
	step.SuccessCriteria = content.SuccessCriteria
	step.Priority = content.Priority
	step.EstimatedMinutes = content.EstimatedMinutes
	if err = o.store.UpdateStepContent(step); err != nil {
		return nil, fmt.Errorf("failed to persist regenerated step %s: %w", stepKey, err)
	}

	o.logger.Printf("STEP_REGENERATED | plan=%s step=%s", planID, stepKey)
	o.emit(sink, EventDone, doneEvent{
		PlanID:    planID,
		StepCount: 1,
		Steps:     []*storage.Step{step},
		StepModel: cfg.Ollama.StepModel,
	})
	return step, nil
}

// =============================================================================
// PLAYBOOK
// =============================================================================

// Playbook generates a deep-dive execution guide for one step. The result
// is returned directly and never persisted.
func (o *Orchestrator) Playbook(ctx context.Context, planID, stepKey string) (*Playbook, error) {
	cfg := o.cfg.Current()
	record, err := o.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	step, err := o.store.GetStep(planID, stepKey)
	if err != nil {
		return nil, err
	}

	planTitle := record.CompanyTitle + " at " + record.CompanyName
	genReq := ollama.GenerationRequest{
		Model:     cfg.Ollama.StepModel,
		Prompt:    buildPlaybookPrompt(planTitle, OutlineStep{Key: step.StepKey, Title: step.Title}, step.Details),
		MaxTokens: cfg.Ollama.StepTokens,
		Timeout:   cfg.Ollama.StepTimeout(),
	}

	payload, err := o.caller.Call(ctx, genReq, structured.CallOptions{RequiredKeys: playbookKeys})
	if err != nil {
		return nil, fmt.Errorf("playbook generation failed for %s: %w", stepKey, err)
	}

	summary, actions, risks := normalizePlaybook(payload)
	if summary == "" {
		return nil, fmt.Errorf("%s: generated playbook summary empty after sanitization", stepKey)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%s: generated playbook has no usable actions", stepKey)
	}

	return &Playbook{
		PlanID:  planID,
		StepKey: step.StepKey,
		Title:   step.Title,
		Summary: summary,
		Actions: actions,
		Risks:   risks,
	}, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Apply converts a plan's steps into open tasks, one per step. Task inserts
// are terminal failures; the audit note is fire-and-forget.
func (o *Orchestrator) Apply(planID string) ([]*storage.Task, error) {
	record, err := o.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if record.Status != "ready" {
		return nil, fmt.Errorf("plan %s is not ready to apply (status %q)", planID, record.Status)
	}

	steps, err := o.store.ListSteps(planID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan %s has no steps to apply", planID)
	}

	tasks := make([]*storage.Task, 0, len(steps))
	for _, step := range steps {
		task := &storage.Task{
			PlanID:  planID,
			StepKey: step.StepKey,
			Title:   step.Title,
			Notes:   step.Details + " Success: " + step.SuccessCriteria,
			Status:  "open",
		}
		if err := o.store.InsertTask(task); err != nil {
			return nil, fmt.Errorf("failed to create task for %s: %w", step.StepKey, err)
		}
		tasks = append(tasks, task)
	}

	if err := o.store.InsertNote(&storage.Note{
		PlanID: planID,
		Body:   fmt.Sprintf("Applied plan as %d tasks.", len(tasks)),
	}); err != nil {
		o.logger.Printf("NOTE_WRITE_ERROR | plan=%s error=%v", planID, err)
	}

	o.logger.Printf("PLAN_APPLIED | plan=%s tasks=%d", planID, len(tasks))
	return tasks, nil
}
