// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan orchestrates multi-step onboarding plan generation.
//
// One Generate call runs one state machine: validate inputs, create the
// plan record, generate a variable-length outline, normalize it, insert
// placeholder step rows, generate each step's content strictly in
// sequence, and persist. Persistence prefers updating the placeholder rows
// in place; if any placeholder insert or step update fails the run degrades
// permanently to a single bulk insert at the end, so the visible plan is
// always either fully placeholder-updated or fully bulk-inserted, never a
// mix.
//
// The outline's positional step_1..step_N keys and titles are
// authoritative everywhere downstream. Per-step generation output can echo
// different identity values; they are ignored, which keeps a confused
// generator from corrupting step identity.
//
// Progress, token deltas, and the terminal result are pushed through an
// EventSink; pass nil for a buffered run with no events.
package plan
