// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sanitize normalizes raw model output into clean, bounded prose.
package sanitize

import (
	"regexp"
	"strings"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// minWordCut is the smallest index at which a word-boundary cut is taken.
// Below this a hard cut loses less information than dropping the tail word.
const minWordCut = 20

// garbageFragments are control-token leftovers some models emit verbatim.
var garbageFragments = []string{
	"<|endoftext|>",
	"<|im_start|>",
	"<|im_end|>",
	"<|eot_id|>",
	"</s>",
	"<s>",
	"[INST]",
	"[/INST]",
}

// quoteReplacer maps typographic quotes to their ASCII equivalents.
var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single
	"’", "'", // right single
	"“", `"`, // left double
	"”", `"`, // right double
	"«", `"`,
	"»", `"`,
)

// whitespaceRun matches any run of whitespace, including newlines and tabs.
var whitespaceRun = regexp.MustCompile(`\s+`)

// =============================================================================
// CLEAN
// =============================================================================

// Clean normalizes text for storage in a bounded field.
//
// It strips known garbage token fragments, converts curly quotes to straight
// quotes, collapses whitespace runs to single spaces, and trims. Text longer
// than maxLen runes is cut at the last space at or before maxLen when that
// position is past minWordCut, otherwise hard-cut at maxLen. A period is
// appended when the result is non-empty and does not already end in '.',
// '!', or '?'.
//
// The result never exceeds maxLen runes plus one trailing punctuation rune.
func Clean(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	for _, frag := range garbageFragments {
		text = strings.ReplaceAll(text, frag, " ")
	}

	text = quoteReplacer.Replace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	// A single trailing terminal rune over budget is within contract; cutting
	// it would make Clean non-idempotent on its own output.
	if len(runes) == maxLen+1 && endsWithTerminal(text) {
		return text
	}
	if len(runes) > maxLen {
		cut := maxLen
		if idx := lastSpaceAtOrBefore(runes, maxLen); idx > minWordCut {
			cut = idx
		}
		text = strings.TrimSpace(string(runes[:cut]))
	}

	text = strings.TrimRight(text, " ,;:-")

	if text != "" && !endsWithTerminal(text) {
		text += "."
	}

	return text
}

// StripControlTokens removes known control-token leftovers from text
// without touching anything else. Unlike Clean it does not reflow
// whitespace, so structured payloads survive intact.
func StripControlTokens(text string) string {
	for _, frag := range garbageFragments {
		text = strings.ReplaceAll(text, frag, "")
	}
	return text
}

// lastSpaceAtOrBefore returns the index of the last space rune at or before
// limit, or -1 if there is none.
func lastSpaceAtOrBefore(runes []rune, limit int) int {
	if limit >= len(runes) {
		limit = len(runes) - 1
	}
	for i := limit; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

// endsWithTerminal reports whether s ends in sentence-terminal punctuation.
func endsWithTerminal(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
