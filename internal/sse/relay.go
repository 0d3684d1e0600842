// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse serializes named events onto a text/event-stream response.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// =============================================================================
// RELAY
// =============================================================================

// ErrStreamingUnsupported is returned when the response writer cannot
// flush, which a long-lived event stream requires.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// Relay writes server-sent events to an HTTP response.
//
// A Relay is single-producer: the orchestration run that owns it emits
// events in order and nothing else writes to the response. Write errors
// (typically a disconnected caller) are surfaced to the producer, which is
// free to ignore them and finish the run.
type Relay struct {
	w       io.Writer
	flusher http.Flusher
}

// NewRelay prepares w for a text/event-stream response and returns a relay
// over it. Fails if w cannot flush incrementally.
func NewRelay(w http.ResponseWriter) (*Relay, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &Relay{w: w, flusher: flusher}, nil
}

// Emit writes one event record and flushes it to the caller.
// The record format is an event-name line, a single data line holding the
// JSON-serialized payload, and a blank separator line.
func (r *Relay) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	if _, err := fmt.Fprintf(r.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}

	r.flusher.Flush()
	return nil
}
