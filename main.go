// ramp - onboarding plan generation service backed by a local LLM.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jeranaias/ramp/internal/config"
	"github.com/jeranaias/ramp/internal/ollama"
	"github.com/jeranaias/ramp/internal/plan"
	"github.com/jeranaias/ramp/internal/server"
	"github.com/jeranaias/ramp/internal/storage"
	"github.com/jeranaias/ramp/internal/structured"
)

func main() {
	configPath := flag.String("config", "", "path to config file (TOML or JSON)")
	flag.Parse()

	// A .env file is optional; absent is the normal case in production.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ENV_LOAD_WARNING | error=%v", err)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("RAMP_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("CONFIG_ERROR | error=%v", err)
	}

	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("STORAGE_ERROR | path=%s error=%v", cfg.Storage.DatabasePath, err)
	}
	defer store.Close()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:        cfg.Ollama.BaseURL,
		DefaultTimeout: cfg.Ollama.StepTimeout(),
	})

	caller := structured.NewCaller(client, structured.RepairConfig{
		Model:     cfg.Ollama.RepairModel,
		MaxTokens: cfg.Ollama.RepairTokens,
		Timeout:   cfg.Ollama.RepairTimeout(),
	})

	holder := config.NewHolder(cfg)
	orch := plan.NewOrchestrator(caller, store, holder, log.Default())
	srv := server.NewServer(cfg, orch, log.Default())

	// Generation settings are snapshotted per run, so a reload takes effect
	// on the next request; server-level fields still need a restart.
	if path != "" {
		watcher, err := config.Watch(path,
			func(updated *config.Config) {
				log.Printf("CONFIG_RELOADED | path=%s", path)
				holder.Swap(updated)
			},
			func(err error) {
				log.Printf("CONFIG_RELOAD_ERROR | path=%s error=%v", path, err)
			},
		)
		if err != nil {
			log.Printf("CONFIG_WATCH_ERROR | path=%s error=%v", path, err)
		} else {
			defer watcher.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("SERVER_ERROR | error=%v", err)
		}
	case sig := <-stop:
		log.Printf("SIGNAL_RECEIVED | signal=%v", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("SHUTDOWN_ERROR | error=%v", err)
		}
	}
}
