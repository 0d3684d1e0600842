// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama chat API.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// STREAM READER
// =============================================================================

// streamReader decodes a newline-delimited JSON generation stream.
//
// bufio buffers partial lines across read chunks; each complete line is
// parsed independently. Lines that fail to parse are skipped — they are
// transient fragment boundaries, not an error condition.
type streamReader struct {
	reader *bufio.Reader
	// strings.Builder avoids quadratic allocations while accumulating
	content strings.Builder
}

// newStreamReader creates a stream reader over the response body.
func newStreamReader(r io.Reader) *streamReader {
	return &streamReader{
		reader: bufio.NewReader(r),
	}
}

// process reads the stream to completion, invoking onDelta synchronously
// for each non-empty content delta in arrival order. Returns nil once a
// record signals done or the stream ends.
func (s *streamReader) process(ctx context.Context, onDelta func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			done := s.handleLine(line, onDelta)
			if done {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// handleLine parses one record and reports whether it signaled completion.
func (s *streamReader) handleLine(line []byte, onDelta func(string)) bool {
	var record streamLine
	if err := json.Unmarshal(line, &record); err != nil {
		// Skip malformed lines
		return false
	}

	if delta := record.Message.Content; delta != "" {
		s.content.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	return record.Done
}

// accumulated returns all content received so far.
func (s *streamReader) accumulated() string {
	return s.content.String()
}
