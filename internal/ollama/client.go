// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches any ClientError of the same type, so callers can compare
// against the sentinels with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeTimeout
	ErrTypeTransport
	ErrTypeEmptyContent
)

// Sentinel errors for easy checking.
var (
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout, Message: "generation request timed out"}
	ErrEmptyContent = &ClientError{Type: ErrTypeEmptyContent, Message: "response carried no content"}
)

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// IsTransport checks if an error is a transport-level failure (non-success
// status or unreachable backend).
func IsTransport(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTransport
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// systemInstruction is sent with every request. The pipeline extracts
// structured data from the raw text, so the model is told to emit nothing
// but minified JSON.
const systemInstruction = "You are a JSON generation engine. Respond with exactly one line of minified JSON. " +
	"No markdown, no code fences, no commentary, no explanation before or after the JSON."

// maxErrorBody caps how much of an upstream error body is captured into a
// ClientError message.
const maxErrorBody = 2048

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: explicit IPv4 instead of localhost avoids IPv6 resolution issues
	// on Windows.
	BaseURL string

	// DefaultTimeout applies when a request carries no timeout (default: 60s).
	DefaultTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:11434",
		DefaultTimeout: 60 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama chat API.
//
// The Client is safe for concurrent use; per-call state lives in the
// request and the stream reader.
type Client struct {
	config *ClientConfig
	// httpClient carries no Timeout of its own; each call's context deadline
	// bounds both blocking and streaming requests uniformly.
	httpClient *http.Client
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 60 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{},
	}
}

// =============================================================================
// BLOCKING GENERATION
// =============================================================================

// Generate issues one non-streaming generation call and returns the full
// response text. The call is bounded by req.Timeout; on expiry the
// in-flight request is aborted and ErrTimeout is returned.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout(req))
	defer cancel()

	resp, err := c.post(ctx, buildChatRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ClientError{Type: ErrTypeTransport, Message: "failed to decode response", Cause: err}
	}

	if strings.TrimSpace(result.Message.Content) == "" {
		return "", ErrEmptyContent
	}

	return result.Message.Content, nil
}

// =============================================================================
// STREAMING GENERATION
// =============================================================================

// GenerateStream issues one streaming generation call. onDelta is invoked
// synchronously for each non-empty content delta in arrival order; the
// accumulated text is returned once the stream signals completion or ends.
//
// On mid-stream failure the text accumulated so far is returned alongside
// the error, so callers can feed the partial output into a repair attempt.
func (c *Client) GenerateStream(ctx context.Context, req GenerationRequest, onDelta func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout(req))
	defer cancel()

	resp, err := c.post(ctx, buildChatRequest(req, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	reader := newStreamReader(resp.Body)
	if err := reader.process(ctx, onDelta); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return reader.accumulated(), &ClientError{Type: ErrTypeTimeout, Message: "stream timed out", Cause: err}
		}
		return reader.accumulated(), &ClientError{Type: ErrTypeTransport, Message: "stream read failed", Cause: err}
	}

	text := reader.accumulated()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}

	return text, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// timeout resolves the effective timeout for a request.
func (c *Client) timeout(req GenerationRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.config.DefaultTimeout
}

// buildChatRequest assembles the wire body shared by both modes.
func buildChatRequest(req GenerationRequest, stream bool) chatRequest {
	return chatRequest{
		Model:  req.Model,
		Stream: stream,
		Options: options{
			Temperature: 0,
			NumPredict:  req.MaxTokens,
		},
		Messages: []message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: req.Prompt},
		},
		Format: "json",
	}
}

// post sends the chat request and returns the response with a 2xx status.
// All failure modes map onto the ClientError taxonomy; non-success statuses
// capture the upstream body for diagnostics.
func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeTransport, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeTransport, Message: "request failed", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		msg := "generation request failed: " + resp.Status
		var upstream apiError
		if err := json.Unmarshal(raw, &upstream); err == nil && upstream.Error != "" {
			msg += ": " + upstream.Error
		} else if len(raw) > 0 {
			msg += ": " + string(raw)
		}
		return nil, &ClientError{Type: ErrTypeTransport, Message: msg}
	}

	return resp, nil
}
