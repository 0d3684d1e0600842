// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "sync/atomic"

// =============================================================================
// HOLDER
// =============================================================================

// Holder publishes the active configuration to concurrent readers. A hot
// reload swaps the whole snapshot in one atomic store, so a reader never
// observes a half-written Config. Snapshots are read-only once published.
type Holder struct {
	ptr atomic.Pointer[Config]
}

// NewHolder wraps cfg as the initial snapshot.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.ptr.Store(cfg)
	return h
}

// Current returns the snapshot in effect. Callers must not mutate it.
func (h *Holder) Current() *Config {
	return h.ptr.Load()
}

// Swap publishes cfg as the new snapshot. In-flight work keeps the
// snapshot it started with.
func (h *Holder) Swap(cfg *Config) {
	h.ptr.Store(cfg)
}
