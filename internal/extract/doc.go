// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extract pulls structured JSON payloads out of raw model output.
//
// Models wrap JSON in code fences, surround it with prose, or truncate it
// mid-object. Extract tolerates all of that: it strips fences, rejects
// obviously truncated payloads early, tries a direct parse, and falls back
// to the first-brace/last-brace span. It never panics and never returns an
// error; a failed extraction is reported as ok=false and the caller decides
// the fallback (typically a repair round-trip).
//
// Extraction makes no assumption about the payload schema. Validating keys
// and value types is the caller's job.
package extract
