// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading for the ramp
// service.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ramp service configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Ollama  OllamaConfig  `toml:"ollama" json:"ollama"`
	Plan    PlanConfig    `toml:"plan" json:"plan"`
	Storage StorageConfig `toml:"storage" json:"storage"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the listen port for the HTTP API.
	Port int `toml:"port" json:"port"`
	// BearerToken, when set, is required on every request.
	BearerToken string `toml:"bearer_token" json:"bearer_token"`
	// RateLimit is the sustained requests-per-second allowance (0 = off).
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the burst size for the rate limiter.
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// OllamaConfig contains inference backend configuration.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL.
	BaseURL string `toml:"base_url" json:"base_url"`
	// OutlineModel generates plan outlines.
	OutlineModel string `toml:"outline_model" json:"outline_model"`
	// StepModel generates per-step content.
	StepModel string `toml:"step_model" json:"step_model"`
	// RepairModel fixes malformed structured output; typically smaller and
	// faster than the primary models. Defaults to StepModel.
	RepairModel string `toml:"repair_model" json:"repair_model"`

	// Token budgets per call kind.
	OutlineTokens int `toml:"outline_tokens" json:"outline_tokens"`
	StepTokens    int `toml:"step_tokens" json:"step_tokens"`
	RepairTokens  int `toml:"repair_tokens" json:"repair_tokens"`

	// Timeouts per call kind, in milliseconds.
	OutlineTimeoutMs int `toml:"outline_timeout_ms" json:"outline_timeout_ms"`
	StepTimeoutMs    int `toml:"step_timeout_ms" json:"step_timeout_ms"`
	RepairTimeoutMs  int `toml:"repair_timeout_ms" json:"repair_timeout_ms"`
}

// PlanConfig bounds generated plans.
type PlanConfig struct {
	// MinSteps and MaxSteps clamp the outline's step count.
	MinSteps int `toml:"min_steps" json:"min_steps"`
	MaxSteps int `toml:"max_steps" json:"max_steps"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// DatabasePath is the SQLite database file location.
	DatabasePath string `toml:"database_path" json:"database_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8790,
			RateLimit: 10,
			RateBurst: 20,
		},
		Ollama: OllamaConfig{
			BaseURL:          "http://127.0.0.1:11434",
			OutlineModel:     "llama3.1:8b",
			StepModel:        "llama3.1:8b",
			RepairModel:      "llama3.2:3b",
			OutlineTokens:    512,
			StepTokens:       384,
			RepairTokens:     384,
			OutlineTimeoutMs: 60000,
			StepTimeoutMs:    45000,
			RepairTimeoutMs:  30000,
		},
		Plan: PlanConfig{
			MinSteps: 3,
			MaxSteps: 10,
		},
		Storage: StorageConfig{
			DatabasePath: "ramp.db",
		},
	}
}

// Timeout helpers convert the millisecond settings to durations.

func (c OllamaConfig) OutlineTimeout() time.Duration {
	return time.Duration(c.OutlineTimeoutMs) * time.Millisecond
}

func (c OllamaConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutMs) * time.Millisecond
}

func (c OllamaConfig) RepairTimeout() time.Duration {
	return time.Duration(c.RepairTimeoutMs) * time.Millisecond
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from path (TOML or JSON by extension), merges it
// over the defaults, applies RAMP_* environment overrides, and validates.
// An empty path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if strings.HasSuffix(path, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse JSON config: %w", err)
			}
		} else {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse TOML config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Ollama.RepairModel == "" {
		cfg.Ollama.RepairModel = cfg.Ollama.StepModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies RAMP_* environment variables over cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAMP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RAMP_BEARER_TOKEN"); v != "" {
		cfg.Server.BearerToken = v
	}
	if v := os.Getenv("RAMP_OLLAMA_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("RAMP_OUTLINE_MODEL"); v != "" {
		cfg.Ollama.OutlineModel = v
	}
	if v := os.Getenv("RAMP_STEP_MODEL"); v != "" {
		cfg.Ollama.StepModel = v
	}
	if v := os.Getenv("RAMP_REPAIR_MODEL"); v != "" {
		cfg.Ollama.RepairModel = v
	}
	if v := os.Getenv("RAMP_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("RAMP_MIN_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Plan.MinSteps = n
		}
	}
	if v := os.Getenv("RAMP_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Plan.MaxSteps = n
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Ollama.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ollama base URL: %q", c.Ollama.BaseURL)
	}

	if c.Ollama.OutlineModel == "" || c.Ollama.StepModel == "" {
		return fmt.Errorf("outline and step models must be set")
	}

	if c.Plan.MinSteps < 1 {
		return fmt.Errorf("min_steps must be at least 1, got %d", c.Plan.MinSteps)
	}
	if c.Plan.MaxSteps < c.Plan.MinSteps {
		return fmt.Errorf("max_steps (%d) must be >= min_steps (%d)", c.Plan.MaxSteps, c.Plan.MinSteps)
	}

	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("database path must be set")
	}

	for _, ms := range []int{c.Ollama.OutlineTimeoutMs, c.Ollama.StepTimeoutMs, c.Ollama.RepairTimeoutMs} {
		if ms <= 0 {
			return fmt.Errorf("generation timeouts must be positive")
		}
	}

	return nil
}
