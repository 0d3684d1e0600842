// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse serializes named events onto a text/event-stream response.
//
// The Relay is a thin serializer, not a queue: Emit writes one
// "event:"/"data:" record and flushes; there is no buffering or
// backpressure beyond the transport's own flow control. Data payloads are
// JSON-encoded, which guarantees the data line is a single line.
package sse
