// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists plans, plan steps, tasks, and notes in SQLite.
//
// The store is a plain collaborator: every operation returns its failure as
// an error value so the orchestrator can branch on it (degrade to bulk
// insert, abort the run, or ignore a best-effort write). Nothing here
// retries or wraps operations in cross-call transactions; the only
// transactional operation is InsertSteps, which writes a whole step set
// atomically for the bulk-insert fallback.
package storage
