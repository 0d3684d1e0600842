// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"fmt"
	"strings"
)

// =============================================================================
// PROMPT CONSTRUCTION
// =============================================================================

// buildOutlinePrompt asks for a step count within bounds plus exactly that
// many positional key/title pairs.
func buildOutlinePrompt(req GenerateRequest, minSteps, maxSteps int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create an onboarding plan outline for a new hire.\n")
	fmt.Fprintf(&sb, "Company: %s\n", req.CompanyName)
	fmt.Fprintf(&sb, "Role: %s\n", req.CompanyTitle)
	fmt.Fprintf(&sb, "Role description: %s\n\n", req.ShortDescription)
	fmt.Fprintf(&sb, "Choose a number of steps N between %d and %d that fits the role, ", minSteps, maxSteps)
	sb.WriteString("then produce exactly N steps.\n")
	sb.WriteString("Return a JSON object with these keys:\n")
	fmt.Fprintf(&sb, "- \"step_count\": N (integer, %d-%d)\n", minSteps, maxSteps)
	sb.WriteString("- \"steps\": array of N objects, each {\"step_key\": \"step_<i>\", \"title\": \"...\"}\n")
	sb.WriteString("Keys must be step_1 through step_N in order. ")
	sb.WriteString("Each title is a short imperative phrase, at most 10 words.")
	return sb.String()
}

// buildStepPrompt echoes the authoritative key and title back into the
// template and asks the generator to fill only content fields.
func buildStepPrompt(req GenerateRequest, step OutlineStep) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the content for one onboarding plan step.\n")
	fmt.Fprintf(&sb, "Company: %s\n", req.CompanyName)
	fmt.Fprintf(&sb, "Role: %s\n", req.CompanyTitle)
	fmt.Fprintf(&sb, "Role description: %s\n", req.ShortDescription)
	fmt.Fprintf(&sb, "Step key: %s\n", step.Key)
	fmt.Fprintf(&sb, "Step title: %s\n\n", step.Title)
	sb.WriteString("Return a JSON object with these keys:\n")
	fmt.Fprintf(&sb, "- \"step_key\": \"%s\" (exactly as given)\n", step.Key)
	fmt.Fprintf(&sb, "- \"title\": \"%s\" (exactly as given)\n", step.Title)
	fmt.Fprintf(&sb, "- \"details\": what to do, one or two sentences, at most %d characters\n", maxDetailsLen)
	fmt.Fprintf(&sb, "- \"success_criteria\": how to know it is done, one sentence, at most %d characters\n", maxCriteriaLen)
	sb.WriteString("- \"priority\": one of \"low\", \"medium\", \"high\"\n")
	fmt.Fprintf(&sb, "- \"estimated_minutes\": integer between %d and %d", minEstimatedMinutes, maxEstimatedMinutes)
	return sb.String()
}

// buildPlaybookPrompt asks for a deep-dive guide for a single step.
func buildPlaybookPrompt(planTitle string, step OutlineStep, details string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a short execution playbook for one onboarding step.\n")
	fmt.Fprintf(&sb, "Plan: %s\n", planTitle)
	fmt.Fprintf(&sb, "Step title: %s\n", step.Title)
	if details != "" {
		fmt.Fprintf(&sb, "Step details: %s\n", details)
	}
	sb.WriteString("\nReturn a JSON object with these keys:\n")
	fmt.Fprintf(&sb, "- \"summary\": what this step accomplishes, at most %d characters\n", maxSummaryLen)
	sb.WriteString("- \"actions\": array of 3 to 6 concrete actions, each a short sentence\n")
	sb.WriteString("- \"risks\": array of 1 to 3 things that commonly go wrong")
	return sb.String()
}
