// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Command server runs the MedChain backend: the registry HTTP API, the
// document store connection supervisor and the fallback retry worker, all
// under one supervision tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medchain-io/medchain/internal/api"
	"github.com/medchain-io/medchain/internal/config"
	"github.com/medchain-io/medchain/internal/database"
	"github.com/medchain-io/medchain/internal/fallback"
	"github.com/medchain-io/medchain/internal/logging"
	"github.com/medchain-io/medchain/internal/store"
	"github.com/medchain-io/medchain/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_url", cfg.Store.URL).
		Str("database", cfg.Store.Database).
		Str("fallback_path", cfg.Fallback.Path).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting MedChain backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connection supervisor over the document store client.
	dial := func(ctx context.Context) (store.Store, error) {
		return store.NewClient(&cfg.Store), nil
	}
	conns := database.NewSupervisor(&cfg.Store, dial)
	defer conns.Close()

	// Startup tolerates a down store: the fallback queue absorbs writes
	// until the worker can replay them.
	if !conns.Connect(ctx) {
		logging.Warn().Msg("Store unreachable at startup, continuing in degraded mode")
	}

	queue := fallback.NewQueue(cfg.Fallback.Path, cfg.Fallback.MaxRetries)
	worker := fallback.NewWorker(queue, conns, &cfg.Fallback)

	handler := api.NewHandler(conns, queue, worker)
	router := api.NewRouter(&cfg.Server, handler)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(supervisor.NewWorkerService("fallback-retry-worker", worker))
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
