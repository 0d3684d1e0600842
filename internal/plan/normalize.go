// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/ramp/internal/sanitize"
)

// =============================================================================
// OUTLINE NORMALIZATION
// =============================================================================

// bareStepTitle matches useless titles like "Step 3", "step 3.", "STEP 3:".
var bareStepTitle = regexp.MustCompile(`^(?i)\s*step\s*\d+\s*[.:]?\s*$`)

const minTitleRunes = 6

// normalizeOutline coerces a raw outline payload into a well-formed Outline.
// The key sequence step_1..step_N is authoritative: titles are looked up by
// exact key in the generator's step list, which may be incomplete, reordered,
// or carry wrong keys. Degenerate titles get a deterministic generic
// replacement.
func normalizeOutline(payload map[string]any, minSteps, maxSteps int) Outline {
	count := clampInt(asInt(payload["step_count"], minSteps), minSteps, maxSteps)

	titles := make(map[string]string)
	if rawSteps, ok := payload["steps"].([]any); ok {
		for _, entry := range rawSteps {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			key, _ := obj["step_key"].(string)
			title, _ := obj["title"].(string)
			if key != "" {
				titles[key] = strings.TrimSpace(title)
			}
		}
	}

	out := Outline{StepCount: count, Steps: make([]OutlineStep, 0, count)}
	for i := 1; i <= count; i++ {
		key := fmt.Sprintf("step_%d", i)
		title := titles[key]
		if isDegenerateTitle(title) {
			title = fmt.Sprintf("Define step %d deliverable", i)
		}
		out.Steps = append(out.Steps, OutlineStep{Key: key, Title: title})
	}
	return out
}

// isDegenerateTitle reports whether a title carries no useful information.
func isDegenerateTitle(title string) bool {
	if title == "" {
		return true
	}
	if bareStepTitle.MatchString(title) {
		return true
	}
	return utf8.RuneCountInString(title) < minTitleRunes
}

// =============================================================================
// STEP CONTENT NORMALIZATION
// =============================================================================

// normalizeStepContent coerces a raw per-step payload into StepContent.
// Identity fields in the payload (step_key, title) are ignored entirely.
// Returns an error if a required content field is empty after sanitization.
func normalizeStepContent(payload map[string]any, stepKey string) (StepContent, error) {
	details := sanitize.Clean(asString(payload["details"]), maxDetailsLen)
	criteria := sanitize.Clean(asString(payload["success_criteria"]), maxCriteriaLen)

	if details == "" {
		return StepContent{}, fmt.Errorf("%s: generated details empty after sanitization", stepKey)
	}
	if criteria == "" {
		return StepContent{}, fmt.Errorf("%s: generated success criteria empty after sanitization", stepKey)
	}

	return StepContent{
		Details:          details,
		SuccessCriteria:  criteria,
		Priority:         normalizePriority(asString(payload["priority"])),
		EstimatedMinutes: normalizeMinutes(payload["estimated_minutes"]),
	}, nil
}

// normalizePlaybook coerces a raw playbook payload. Actions and risks keep
// only non-empty string entries, each sanitized.
func normalizePlaybook(payload map[string]any) (summary string, actions, risks []string) {
	summary = sanitize.Clean(asString(payload["summary"]), maxSummaryLen)
	actions = cleanStringList(payload["actions"])
	risks = cleanStringList(payload["risks"])
	return summary, actions, risks
}

func cleanStringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		if cleaned := sanitize.Clean(s, maxListItemLen); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// normalizePriority maps any unrecognized value to medium.
func normalizePriority(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// normalizeMinutes clamps into bounds, defaulting when absent or non-finite.
func normalizeMinutes(v any) int {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultEstimatedMinutes
	}
	return clampInt(int(math.Round(f)), minEstimatedMinutes, maxEstimatedMinutes)
}

// =============================================================================
// LOOSE-TYPED ACCESSORS
// =============================================================================

// Decoded JSON carries numbers as float64 and everything else as whatever
// the generator felt like; these accessors absorb the slop.

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func asInt(v any, fallback int) int {
	if f, ok := asFloat(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(math.Round(f))
	}
	return fallback
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
