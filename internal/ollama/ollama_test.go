// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama chat API.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// decodeChatRequest reads the wire body a handler received.
func decodeChatRequest(t *testing.T, r *http.Request) chatRequest {
	t.Helper()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	return req
}

func newTestClient(baseURL string) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:        baseURL,
		DefaultTimeout: 5 * time.Second,
	})
}

// =============================================================================
// BLOCKING MODE TESTS
// =============================================================================

func TestGenerate_ReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		req := decodeChatRequest(t, r)
		if req.Stream {
			t.Error("Stream = true, want false")
		}
		if req.Format != "json" {
			t.Errorf("Format = %q, want 'json'", req.Format)
		}
		if req.Options.Temperature != 0 {
			t.Errorf("Temperature = %v, want 0", req.Options.Temperature)
		}
		if req.Options.NumPredict != 256 {
			t.Errorf("NumPredict = %d, want 256", req.Options.NumPredict)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("Messages = %+v, want [system, user]", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model":   "test-model",
			"message": map[string]string{"role": "assistant", "content": `{"ok":true}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Generate(context.Background(), GenerationRequest{
		Model:     "test-model",
		Prompt:    "make a plan",
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Generate() = %q, want '{\"ok\":true}'", got)
	}
}

func TestGenerate_TemperatureOnWire(t *testing.T) {
	// The options object must carry an explicit temperature field even at
	// zero; omitting it would fall back to the server default sampling.
	var rawBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"content": "x"},
			"done":    true,
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), GenerationRequest{Model: "m", Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(string(rawBody), `"temperature":0`) {
		t.Errorf("request body %s missing explicit temperature", rawBody)
	}
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'nope' not found"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), GenerationRequest{Model: "nope", Prompt: "p"})
	if err == nil {
		t.Fatal("Generate() error = nil, want transport error")
	}
	if !IsTransport(err) {
		t.Errorf("IsTransport(%v) = false, want true", err)
	}
	if !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Errorf("error %q does not include upstream body", err)
	}
}

func TestGenerate_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "   "},
			"done":    true,
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), GenerationRequest{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Generate() error = %v, want ErrEmptyContent", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), GenerationRequest{
		Model:   "m",
		Prompt:  "p",
		Timeout: 50 * time.Millisecond,
	})
	if !IsTimeout(err) {
		t.Errorf("Generate() error = %v, want timeout", err)
	}
}

// =============================================================================
// STREAMING MODE TESTS
// =============================================================================

// writeStreamLines writes NDJSON records, flushing after each line.
func writeStreamLines(w http.ResponseWriter, lines []string) {
	flusher := w.(http.Flusher)
	for _, line := range lines {
		w.Write([]byte(line + "\n"))
		flusher.Flush()
	}
}

func TestGenerateStream_DeliversDeltasInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeChatRequest(t, r)
		if !req.Stream {
			t.Error("Stream = false, want true")
		}
		writeStreamLines(w, []string{
			`{"model":"m","message":{"role":"assistant","content":"{\"a\":"},"done":false}`,
			`{"model":"m","message":{"role":"assistant","content":"1}"},"done":false}`,
			`{"model":"m","message":{"role":"assistant","content":""},"done":true}`,
		})
	}))
	defer srv.Close()

	var deltas []string
	got, err := newTestClient(srv.URL).GenerateStream(context.Background(), GenerationRequest{Model: "m", Prompt: "p"},
		func(delta string) { deltas = append(deltas, delta) })
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("accumulated = %q, want '{\"a\":1}'", got)
	}
	if len(deltas) != 2 || deltas[0] != `{"a":` || deltas[1] != "1}" {
		t.Errorf("deltas = %q, want the two non-empty deltas in order", deltas)
	}
}

func TestGenerateStream_SkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStreamLines(w, []string{
			`{"message":{"content":"hello"},"done":false}`,
			`this is not json`,
			`{"message":{"content":" world"},"done":true}`,
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).GenerateStream(context.Background(), GenerationRequest{Model: "m", Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("accumulated = %q, want 'hello world'", got)
	}
}

func TestGenerateStream_StopsOnDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStreamLines(w, []string{
			`{"message":{"content":"first"},"done":true}`,
			`{"message":{"content":"IGNORED"},"done":false}`,
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).GenerateStream(context.Background(), GenerationRequest{Model: "m", Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if got != "first" {
		t.Errorf("accumulated = %q, want 'first'", got)
	}
}

func TestGenerateStream_EOFWithoutDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStreamLines(w, []string{
			`{"message":{"content":"partial"},"done":false}`,
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).GenerateStream(context.Background(), GenerationRequest{Model: "m", Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if got != "partial" {
		t.Errorf("accumulated = %q, want 'partial'", got)
	}
}

func TestGenerateStream_EmptyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStreamLines(w, []string{`{"message":{"content":""},"done":true}`})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateStream(context.Background(), GenerationRequest{Model: "m", Prompt: "p"}, nil)
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("GenerateStream() error = %v, want ErrEmptyContent", err)
	}
}
