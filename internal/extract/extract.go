// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extract pulls structured JSON payloads out of raw model output.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/ramp/internal/sanitize"
)

// =============================================================================
// OBJECT EXTRACTION
// =============================================================================

// Extract parses a JSON object from raw model output.
//
// Strategy, in order:
//  1. Strip markdown code fences and known control-token leftovers, trim.
//  2. Reject payloads that open with '{' or '[' but lack the matching
//     closer — the generation was truncated and parsing the fragment would
//     at best succeed on garbage. The cost of a false positive here is one
//     repair round-trip, not a correctness bug, so the check stays simple.
//  3. Direct parse.
//  4. First-'{' / last-'}' span parse, for JSON wrapped in prose or
//     followed by trailing tokens.
//
// Returns ok=false when no strategy yields a JSON object. Never panics.
func Extract(raw string) (map[string]any, bool) {
	text := stripFences(raw)
	if text == "" {
		return nil, false
	}

	if looksTruncated(text) {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload != nil {
		return payload, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	payload = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil && payload != nil {
		return payload, true
	}

	return nil, false
}

// =============================================================================
// ARRAY EXTRACTION
// =============================================================================

// ExtractArray parses a JSON array from raw model output using the same
// strategy as Extract, with '['/']' as the delimiters.
func ExtractArray(raw string) ([]any, bool) {
	text := stripFences(raw)
	if text == "" {
		return nil, false
	}

	if looksTruncated(text) {
		return nil, false
	}

	var payload []any
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload != nil {
		return payload, true
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, false
	}

	payload = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil && payload != nil {
		return payload, true
	}

	return nil, false
}

// =============================================================================
// HELPERS
// =============================================================================

// stripFences removes markdown code-fence markers and control-token
// leftovers around a payload. Control tokens come off before the
// truncation check so a trailing "<|im_end|>" does not read as an
// unclosed container.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = sanitize.StripControlTokens(text)
	return strings.TrimSpace(text)
}

// looksTruncated reports whether text opens a JSON container it never
// closes. Conservative by design: it only inspects the outer delimiters.
func looksTruncated(text string) bool {
	switch {
	case strings.HasPrefix(text, "{"):
		return !strings.HasSuffix(text, "}")
	case strings.HasPrefix(text, "["):
		return !strings.HasSuffix(text, "]")
	default:
		return false
	}
}
