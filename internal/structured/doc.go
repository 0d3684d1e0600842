// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package structured obtains parseable JSON payloads from an unreliable
// text generator.
//
// A Caller wraps the generation client with a two-attempt protocol: one
// primary call (blocking or streaming), extraction, and — only when
// extraction fails — one blocking repair call against a smaller model that
// is shown the literal malformed output and asked to return corrected
// single-line JSON. At most two upstream calls are ever made per request;
// the repair call is always blocking, even when the primary was streaming,
// to bound fallback latency and avoid a partial-token UI state for a path
// the caller never sees tokens from.
//
// This package is the single place that absorbs generator unreliability.
// Everything downstream operates on already-extracted payloads.
package structured
