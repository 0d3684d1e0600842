// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "testing"

// =============================================================================
// HOLDER TESTS
// =============================================================================

func TestHolder_CurrentReturnsInitialSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ollama.StepModel = "initial"

	h := NewHolder(cfg)
	if h.Current().Ollama.StepModel != "initial" {
		t.Errorf("Current().Ollama.StepModel = %q, want 'initial'", h.Current().Ollama.StepModel)
	}
}

func TestHolder_SwapVisibleToConcurrentReaders(t *testing.T) {
	h := NewHolder(DefaultConfig())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			next := DefaultConfig()
			next.Ollama.StepModel = "swapped"
			h.Swap(next)
		}
	}()

	// Readers race the writer; every snapshot must be whole.
	initial := DefaultConfig().Ollama.StepModel
	for i := 0; i < 1000; i++ {
		snap := h.Current()
		if snap == nil {
			t.Fatal("Current() = nil")
		}
		if m := snap.Ollama.StepModel; m != initial && m != "swapped" {
			t.Fatalf("Current().Ollama.StepModel = %q, torn snapshot", m)
		}
	}
	<-done

	if h.Current().Ollama.StepModel != "swapped" {
		t.Errorf("Current().Ollama.StepModel = %q, want 'swapped'", h.Current().Ollama.StepModel)
	}
}
