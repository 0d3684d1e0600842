// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sanitize normalizes raw model output into clean, bounded prose.
//
// Generated text arrives with markdown leftovers, smart quotes, stray
// control tokens, and no predictable length. Clean turns that into a
// single-spaced, straight-quoted sentence that fits a field budget and
// ends in terminal punctuation. It is a pure function and never fails.
package sanitize
