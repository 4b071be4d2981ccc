// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/medchain-io/medchain/internal/logging"
)

// StartStopper is the lifecycle shape of the fallback retry worker.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// WorkerService adapts a Start/Stop manager to suture.Service.
type WorkerService struct {
	name    string
	manager StartStopper
}

// NewWorkerService wraps a Start/Stop manager for supervision.
func NewWorkerService(name string, manager StartStopper) *WorkerService {
	return &WorkerService{name: name, manager: manager}
}

// Serve implements suture.Service. It starts the manager, blocks until the
// context is canceled, then stops it and waits for a clean exit.
func (s *WorkerService) Serve(ctx context.Context) error {
	logging.Info().Str("service", s.name).Msg("Starting supervised service")

	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	logging.Info().Str("service", s.name).Msg("Stopping supervised service")
	s.manager.Stop()
	return ctx.Err()
}

// String names the service in suture logs.
func (s *WorkerService) String() string {
	return s.name
}

// HTTPService runs an *http.Server under supervision with graceful shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an HTTP server for supervision.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. A listener error restarts the service
// through the supervisor; context cancellation shuts down gracefully.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logging.Info().Msg("Shutting down HTTP server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown failed, forcing close")
		_ = s.server.Close()
	}
	<-errCh
	return ctx.Err()
}

// String names the service in suture logs.
func (s *HTTPService) String() string {
	return "http-server"
}
