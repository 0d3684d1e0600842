// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama chat API.
package ollama

import "time"

// =============================================================================
// GENERATION REQUEST
// =============================================================================

// GenerationRequest describes a single generation call. Immutable once
// constructed; build a fresh value per call.
type GenerationRequest struct {
	// Model is the Ollama model identifier (e.g. "llama3.1:8b").
	Model string

	// Prompt is the user prompt text.
	Prompt string

	// MaxTokens is the output token budget (num_predict).
	MaxTokens int

	// Timeout bounds the whole call, connect through last byte.
	// Zero means the client default.
	Timeout time.Duration
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// message is a chat message in the request body.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// options holds model parameters for inference.
//
// Temperature deliberately has no omitempty: zero is the value we want on
// the wire, not an absent field falling back to the server default.
type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// chatRequest is the request body for the /api/chat endpoint.
type chatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
	Messages []message `json:"messages"`
	Format   string    `json:"format,omitempty"`
}

// chatResponse is the non-streaming response from /api/chat.
type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// streamLine is one newline-delimited record of a streaming response.
// Content arrives as deltas in message.content; done signals the end of
// generation.
type streamLine struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// apiError is the error body Ollama returns on non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}
