// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jeranaias/ramp/internal/config"
	"github.com/jeranaias/ramp/internal/ollama"
	"github.com/jeranaias/ramp/internal/storage"
	"github.com/jeranaias/ramp/internal/structured"
)

// =============================================================================
// CALLER INTERFACE
// =============================================================================

// Caller obtains structured payloads from the generation backend. Satisfied
// by structured.Caller.
type Caller interface {
	Call(ctx context.Context, req ollama.GenerationRequest, opts structured.CallOptions) (map[string]any, error)
	CallStream(ctx context.Context, req ollama.GenerationRequest, opts structured.CallOptions, onDelta func(string)) (map[string]any, error)
}

// Required payload keys, named in repair prompts.
var (
	outlineKeys  = []string{"step_count", "steps"}
	stepKeys     = []string{"details", "success_criteria", "priority", "estimated_minutes"}
	playbookKeys = []string{"summary", "actions", "risks"}
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence surface a run needs. Satisfied by *storage.Store.
type Store interface {
	CreatePlan(p *storage.Plan) (string, error)
	GetPlan(id string) (*storage.Plan, error)
	UpdatePlanStatus(id, status string) error
	InsertNote(n *storage.Note) error
	InsertStep(step *storage.Step) error
	InsertSteps(steps []*storage.Step) error
	UpdateStepContent(step *storage.Step) error
	DeleteSteps(planID string) error
	GetStep(planID, stepKey string) (*storage.Step, error)
	ListSteps(planID string) ([]*storage.Step, error)
	InsertTask(t *storage.Task) error
}

// =============================================================================
// EVENT PAYLOADS
// =============================================================================

type statusEvent struct {
	PlanID  string `json:"plan_id"`
	Stage   string `json:"stage"`
	StepKey string `json:"step_key,omitempty"`
	Title   string `json:"title,omitempty"`
}

type tokenEvent struct {
	Scope   string `json:"scope"` // "outline" or "step"
	StepKey string `json:"step_key,omitempty"`
	Content string `json:"content"`
}

type doneEvent struct {
	PlanID       string          `json:"plan_id"`
	StepCount    int             `json:"step_count"`
	Steps        []*storage.Step `json:"steps"`
	OutlineModel string          `json:"outline_model,omitempty"`
	StepModel    string          `json:"step_model,omitempty"`
}

type errorEvent struct {
	PlanID  string `json:"plan_id,omitempty"`
	Message string `json:"message"`
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Result is the outcome of a completed generation run.
type Result struct {
	Plan  *storage.Plan   `json:"plan"`
	Steps []*storage.Step `json:"steps"`
}

// Orchestrator drives plan generation runs against the generation backend
// and the datastore. Each run takes one config snapshot from the holder,
// so a hot reload applies to the next run, never mid-run.
type Orchestrator struct {
	caller Caller
	store  Store
	cfg    *config.Holder
	logger *log.Logger
}

// NewOrchestrator wires an orchestrator. A nil logger falls back to the
// process default.
func NewOrchestrator(caller Caller, store Store, cfg *config.Holder, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		caller: caller,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Generate runs a full plan generation: create the plan record, generate
// and normalize the outline, insert placeholder rows, generate each step's
// content strictly in order, and persist. A nil sink selects a buffered
// run with no event traffic; a non-nil sink additionally receives status,
// token, done, and error events.
//
// Persistence degrades, never mixes: if any placeholder insert or in-place
// update fails, the remainder of the run switches permanently to a single
// bulk insert at the end, so the visible row set is always complete.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest, sink EventSink) (result *Result, err error) {
	streaming := sink != nil
	if sink == nil {
		sink = nullSink{}
	}
	cfg := o.cfg.Current()

	// One recovery point for the whole run: a panic anywhere below becomes
	// a run error so the failure paths (status flip, error event) still
	// execute and no stream is left dangling. Failures before the plan
	// record exists still surface as an error event, with no plan id.
	var planID string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plan generation panicked: %v", r)
			result = nil
		}
		if err != nil {
			if planID != "" {
				if statusErr := o.store.UpdatePlanStatus(planID, "failed"); statusErr != nil {
					o.logger.Printf("PLAN_STATUS_ERROR | plan=%s status=failed error=%v", planID, statusErr)
				}
			}
			o.emit(sink, EventError, errorEvent{PlanID: planID, Message: err.Error()})
		}
	}()

	req.normalize()
	if err = req.validate(); err != nil {
		return nil, err
	}

	record := &storage.Plan{
		CompanyName:      req.CompanyName,
		CompanyTitle:     req.CompanyTitle,
		ShortDescription: req.ShortDescription,
		Status:           "generating",
		Model:            cfg.Ollama.StepModel,
	}
	planID, err = o.store.CreatePlan(record)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan record: %w", err)
	}

	o.emit(sink, EventStatus, statusEvent{PlanID: planID, Stage: "outline"})

	outline, err := o.generateOutline(ctx, cfg, req, streaming, sink)
	if err != nil {
		return nil, err
	}

	// Placeholder rows make the plan's shape visible immediately. A failure
	// here is not fatal: the run degrades to one bulk insert at the end.
	incremental := true
	for i, step := range outline.Steps {
		row := placeholderRow(planID, i+1, step)
		if insertErr := o.store.InsertStep(row); insertErr != nil {
			o.logger.Printf("PLACEHOLDER_DEGRADE | plan=%s step=%s error=%v", planID, step.Key, insertErr)
			incremental = false
			break
		}
	}
	if !incremental {
		// Drop any placeholders that did land; the bulk path re-inserts
		// the full set so the row set is never a mix of the two modes.
		if delErr := o.store.DeleteSteps(planID); delErr != nil {
			o.logger.Printf("PLACEHOLDER_CLEANUP_ERROR | plan=%s error=%v", planID, delErr)
		}
	}

	steps := make([]*storage.Step, 0, outline.StepCount)
	for i, outlineStep := range outline.Steps {
		o.emit(sink, EventStatus, statusEvent{
			PlanID:  planID,
			Stage:   "step",
			StepKey: outlineStep.Key,
			Title:   outlineStep.Title,
		})

		content, stepErr := o.generateStep(ctx, cfg, req, outlineStep, streaming, sink)
		if stepErr != nil {
			return nil, stepErr
		}

		row := placeholderRow(planID, i+1, outlineStep)
		row.Details = content.Details
		row.SuccessCriteria = content.SuccessCriteria
		row.Priority = content.Priority
		row.EstimatedMinutes = content.EstimatedMinutes
		steps = append(steps, row)

		if incremental {
			if updErr := o.store.UpdateStepContent(row); updErr != nil {
				o.logger.Printf("STEP_UPDATE_DEGRADE | plan=%s step=%s error=%v", planID, outlineStep.Key, updErr)
				incremental = false
			}
		}
	}

	if !incremental {
		if delErr := o.store.DeleteSteps(planID); delErr != nil {
			o.logger.Printf("BULK_CLEANUP_ERROR | plan=%s error=%v", planID, delErr)
		}
		if bulkErr := o.store.InsertSteps(steps); bulkErr != nil {
			return nil, fmt.Errorf("bulk insert failed for plan %s: %w", planID, bulkErr)
		}
	}

	if statusErr := o.store.UpdatePlanStatus(planID, "ready"); statusErr != nil {
		o.logger.Printf("PLAN_STATUS_ERROR | plan=%s status=ready error=%v", planID, statusErr)
	}

	record.ID = planID
	record.Status = "ready"
	o.logger.Printf("PLAN_READY | plan=%s steps=%d incremental=%t", planID, outline.StepCount, incremental)
	o.emit(sink, EventDone, doneEvent{
		PlanID:       planID,
		StepCount:    outline.StepCount,
		Steps:        steps,
		OutlineModel: cfg.Ollama.OutlineModel,
		StepModel:    cfg.Ollama.StepModel,
	})

	return &Result{Plan: record, Steps: steps}, nil
}

// generateOutline runs the outline call and normalizes its payload.
func (o *Orchestrator) generateOutline(ctx context.Context, cfg *config.Config, req GenerateRequest, streaming bool, sink EventSink) (Outline, error) {
	genReq := ollama.GenerationRequest{
		Model:     cfg.Ollama.OutlineModel,
		Prompt:    buildOutlinePrompt(req, cfg.Plan.MinSteps, cfg.Plan.MaxSteps),
		MaxTokens: cfg.Ollama.OutlineTokens,
		Timeout:   cfg.Ollama.OutlineTimeout(),
	}
	opts := structured.CallOptions{RequiredKeys: outlineKeys}

	var payload map[string]any
	var err error
	if streaming {
		payload, err = o.caller.CallStream(ctx, genReq, opts, o.tokenRelay(sink, "outline", ""))
	} else {
		payload, err = o.caller.Call(ctx, genReq, opts)
	}
	if err != nil {
		return Outline{}, fmt.Errorf("outline generation failed: %w", err)
	}

	return normalizeOutline(payload, cfg.Plan.MinSteps, cfg.Plan.MaxSteps), nil
}

// generateStep runs one per-step call and normalizes its payload. The
// outline step's key and title stay authoritative regardless of what the
// generator echoes back.
func (o *Orchestrator) generateStep(ctx context.Context, cfg *config.Config, req GenerateRequest, step OutlineStep, streaming bool, sink EventSink) (StepContent, error) {
	genReq := ollama.GenerationRequest{
		Model:     cfg.Ollama.StepModel,
		Prompt:    buildStepPrompt(req, step),
		MaxTokens: cfg.Ollama.StepTokens,
		Timeout:   cfg.Ollama.StepTimeout(),
	}
	opts := structured.CallOptions{RequiredKeys: stepKeys}

	var payload map[string]any
	var err error
	if streaming {
		payload, err = o.caller.CallStream(ctx, genReq, opts, o.tokenRelay(sink, "step", step.Key))
	} else {
		payload, err = o.caller.Call(ctx, genReq, opts)
	}
	if err != nil {
		return StepContent{}, fmt.Errorf("%s: generation failed: %w", step.Key, err)
	}

	return normalizeStepContent(payload, step.Key)
}

// tokenRelay adapts a sink into a delta callback. Whitespace-only deltas
// never become events.
func (o *Orchestrator) tokenRelay(sink EventSink, scope, stepKey string) func(string) {
	return func(delta string) {
		if strings.TrimSpace(delta) == "" {
			return
		}
		o.emit(sink, EventToken, tokenEvent{Scope: scope, StepKey: stepKey, Content: delta})
	}
}

// emit pushes one event, treating failure as a disconnected observer.
func (o *Orchestrator) emit(sink EventSink, event string, data any) {
	if err := sink.Emit(event, data); err != nil {
		o.logger.Printf("EVENT_DROP | event=%s error=%v", event, err)
	}
}

// placeholderRow builds a step row with empty content fields.
func placeholderRow(planID string, orderIndex int, step OutlineStep) *storage.Step {
	return &storage.Step{
		PlanID:     planID,
		StepKey:    step.Key,
		OrderIndex: orderIndex,
		Title:      step.Title,
		Status:     StatusNotStarted,
	}
}
