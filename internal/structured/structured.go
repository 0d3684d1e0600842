// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package structured obtains parseable JSON payloads from an unreliable
// text generator.
package structured

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/ramp/internal/extract"
	"github.com/jeranaias/ramp/internal/ollama"
	"github.com/jeranaias/ramp/internal/util"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// rawPreviewLen bounds how much of each raw output an ExtractionError keeps.
const rawPreviewLen = 240

// ExtractionError reports that two rounds of generation produced no
// parseable structured payload. PrimaryRaw and RepairRaw hold truncated
// prefixes of both raw outputs for diagnosis.
type ExtractionError struct {
	PrimaryRaw string
	RepairRaw  string
}

func (e *ExtractionError) Error() string {
	return "no parseable structured payload after repair; primary output: " +
		quoteOrEmpty(e.PrimaryRaw) + "; repair output: " + quoteOrEmpty(e.RepairRaw)
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "\"" + s + "\""
}

// =============================================================================
// GENERATOR INTERFACE
// =============================================================================

// Generator is the upstream generation client.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerationRequest) (string, error)
	GenerateStream(ctx context.Context, req ollama.GenerationRequest, onDelta func(string)) (string, error)
}

// =============================================================================
// CALLER
// =============================================================================

// RepairConfig describes the repair call issued when the primary output
// fails extraction.
type RepairConfig struct {
	// Model is the repair model, typically smaller and faster than any
	// primary model.
	Model string

	// MaxTokens is the repair call's output budget.
	MaxTokens int

	// Timeout bounds the repair call.
	Timeout time.Duration
}

// CallOptions tunes a single structured-output request.
type CallOptions struct {
	// RequiredKeys, when set, are named in the repair prompt so the repair
	// model reproduces them. Extraction itself is schema-agnostic.
	RequiredKeys []string
}

// Caller wraps a Generator with the extract-then-repair protocol.
type Caller struct {
	client Generator
	repair RepairConfig
}

// NewCaller creates a caller with the given upstream client and repair
// configuration.
func NewCaller(client Generator, repair RepairConfig) *Caller {
	return &Caller{
		client: client,
		repair: repair,
	}
}

// Call runs one blocking generation call and extracts a structured payload,
// issuing a single blocking repair call if extraction fails.
func (c *Caller) Call(ctx context.Context, req ollama.GenerationRequest, opts CallOptions) (map[string]any, error) {
	return c.call(ctx, req, opts, nil)
}

// CallStream behaves like Call but streams the primary call, invoking
// onDelta for each content delta. The repair call, if needed, is blocking.
func (c *Caller) CallStream(ctx context.Context, req ollama.GenerationRequest, opts CallOptions, onDelta func(string)) (map[string]any, error) {
	return c.call(ctx, req, opts, onDelta)
}

func (c *Caller) call(ctx context.Context, req ollama.GenerationRequest, opts CallOptions, onDelta func(string)) (map[string]any, error) {
	var raw string
	var err error
	if onDelta != nil {
		raw, err = c.client.GenerateStream(ctx, req, onDelta)
	} else {
		raw, err = c.client.Generate(ctx, req)
	}

	// A transport or timeout failure still proceeds to the repair attempt;
	// raw carries whatever partial output the primary produced.
	if err == nil {
		if payload, ok := extract.Extract(raw); ok {
			return payload, nil
		}
	}

	repairReq := ollama.GenerationRequest{
		Model:     c.repair.Model,
		Prompt:    buildRepairPrompt(raw, opts.RequiredKeys),
		MaxTokens: c.repair.MaxTokens,
		Timeout:   c.repair.Timeout,
	}

	repairRaw, repairErr := c.client.Generate(ctx, repairReq)
	if repairErr == nil {
		if payload, ok := extract.Extract(repairRaw); ok {
			return payload, nil
		}
	}

	return nil, &ExtractionError{
		PrimaryRaw: util.TruncateRunes(raw, rawPreviewLen),
		RepairRaw:  util.TruncateRunes(repairRaw, rawPreviewLen),
	}
}

// =============================================================================
// REPAIR PROMPT
// =============================================================================

// buildRepairPrompt embeds the literal malformed output and asks for
// corrected single-line JSON.
func buildRepairPrompt(malformed string, requiredKeys []string) string {
	var sb strings.Builder
	sb.WriteString("The previous attempt to produce JSON failed. This is the malformed output:\n\n")
	if strings.TrimSpace(malformed) == "" {
		sb.WriteString("(no output was produced)")
	} else {
		sb.WriteString(malformed)
	}
	sb.WriteString("\n\nReturn the corrected data as one line of minified JSON. ")
	sb.WriteString("Do not use markdown, code fences, or commentary.")
	if len(requiredKeys) > 0 {
		sb.WriteString(" The JSON object must contain the keys: ")
		sb.WriteString(strings.Join(requiredKeys, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}
