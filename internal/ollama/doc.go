// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama chat API.
//
// The client issues single-prompt generation requests in two modes:
//
//   - Generate: one blocking call, full text returned at once.
//   - GenerateStream: one streaming call, the newline-delimited JSON
//     response is decoded incrementally and each content delta is handed to
//     a callback in arrival order before the accumulated text is returned.
//
// Every request pins temperature to zero, sets format "json", and carries a
// system instruction demanding single-line minified JSON, because callers
// feed the output straight into a structured-output extractor. Each call is
// bounded by an explicit timeout; on expiry the in-flight request is
// aborted and the call fails with ErrTimeout.
//
// Errors are typed (ClientError with an ErrorType) and support errors.Is /
// errors.As, so callers can branch on timeout vs transport failure.
package ollama
