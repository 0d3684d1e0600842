// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes plan generation over HTTP.
//
// Endpoints:
//   - POST /v1/plans - plan operations, selected by the "op" field
//   - GET  /health   - health check
//
// The plans endpoint accepts one JSON body shape for all operations:
// "generate" creates a full plan, "regenerate_step" re-runs one step,
// "playbook" returns a deep-dive guide, and "apply" converts a plan into
// tasks. Generate and regenerate support a "stream" flag selecting a
// server-sent-event response over a buffered JSON one.
//
// Middleware provides panic recovery, request logging, per-IP rate
// limiting, and optional bearer token authentication.
package server
