// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading for the ramp
// service.
//
// Supports both TOML and JSON configuration formats, with sensible
// defaults, RAMP_* environment variable overrides, and validation. The
// loaded Config is threaded explicitly into every component constructor —
// nothing reads configuration ambiently — so tests can substitute fixed
// values and fake transports.
package config
