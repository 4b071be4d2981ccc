// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package database supervises the shared connection to the document store.
//
// The Supervisor owns the single store handle used by request handlers and
// the fallback retry worker. It performs periodic health checks, reconnects
// with exponential backoff, and gates connection attempts behind a circuit
// breaker so a down store does not trigger retry storms.
//
// Store unavailability is never an error here: callers get a nil handle or
// a false return and decide what to do (typically buffer the write in
// internal/fallback).
package database

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/medchain-io/medchain/internal/config"
	"github.com/medchain-io/medchain/internal/logging"
	"github.com/medchain-io/medchain/internal/metrics"
	"github.com/medchain-io/medchain/internal/store"
)

// Dialer opens a fresh connection to the document store. Injected so the
// supervisor can be tested without a real store.
type Dialer func(ctx context.Context) (store.Store, error)

// StatusSnapshot is a read-only view of the supervisor state for the
// diagnostics endpoint. Producing one never performs I/O.
type StatusSnapshot struct {
	Connected          bool      `json:"connected"`
	CircuitBreakerOpen bool      `json:"circuit_breaker_open"`
	BreakerState       string    `json:"breaker_state"`
	FailureCount       uint32    `json:"failure_count"`
	LastHealthCheck    time.Time `json:"last_health_check"`
	Database           string    `json:"database"`
}

// Supervisor owns the shared document store handle.
//
// All state is guarded by mu. Holding mu across the whole connect sequence
// is deliberate: at most one connection attempt (with its backoff budget)
// is in flight system-wide, and concurrent callers wait for that attempt
// instead of dialing redundantly.
type Supervisor struct {
	cfg  *config.StoreConfig
	dial Dialer

	cb *gobreaker.CircuitBreaker[struct{}]

	mu              sync.Mutex
	handle          store.Store
	healthy         bool
	lastHealthCheck time.Time
}

// NewSupervisor creates a supervisor for the document store. No connection
// is attempted until Connect or GetHandle is called.
func NewSupervisor(cfg *config.StoreConfig, dial Dialer) *Supervisor {
	s := &Supervisor{
		cfg:  cfg,
		dial: dial,
	}

	metrics.CircuitBreakerState.Set(0)
	metrics.CircuitBreakerConsecutiveFailures.Set(0)

	s.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name: "document-store",

		// One probe at a time in half-open: after the cool-down exactly
		// the next caller gets a real attempt.
		MaxRequests: 1,

		// Interval 0: consecutive failure counts are never cleared while
		// closed, matching the threshold-of-consecutive-failures contract.
		Interval: 0,
		Timeout:  cfg.BreakerResetTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.Set(stateToFloat(to))
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.Set(0)
			}
		},
	})

	return s
}

// Connect establishes a store connection, retrying with exponential backoff
// up to the configured attempt budget. Returns false without any network
// I/O when the circuit breaker is open. Already-connected supervisors
// return true immediately.
func (s *Supervisor) Connect(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// connectLocked is the connect path; mu must be held.
func (s *Supervisor) connectLocked(ctx context.Context) bool {
	if s.healthy && s.handle != nil {
		return true
	}

	if s.cb.State() == gobreaker.StateOpen {
		logging.Warn().Msg("Circuit breaker open, skipping connection attempt")
		metrics.RecordConnectAttempt("rejected")
		return false
	}

	for attempt := 0; attempt < s.cfg.ConnectMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.cfg.ConnectBackoffBase * (1 << uint(attempt-1))
			logging.Info().
				Dur("delay", delay).
				Int("attempt", attempt+1).
				Int("max_attempts", s.cfg.ConnectMaxAttempts).
				Msg("Retrying store connection")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}

		if s.tryDialLocked(ctx) {
			return true
		}

		// Breaker may have tripped on this failure; remaining attempts
		// would be rejected without I/O, so stop early.
		if s.cb.State() == gobreaker.StateOpen {
			break
		}
	}

	logging.Error().
		Int("attempts", s.cfg.ConnectMaxAttempts).
		Msg("Failed to establish store connection")
	return false
}

// tryDialLocked performs a single dial+probe inside the circuit breaker.
// Each failed probe counts once against the breaker; any success resets it.
func (s *Supervisor) tryDialLocked(ctx context.Context) bool {
	_, err := s.cb.Execute(func() (struct{}, error) {
		// Close any stale handle before opening a fresh connection.
		if s.handle != nil {
			s.handle.Close()
			s.handle = nil
			s.healthy = false
		}

		h, dialErr := s.dial(ctx)
		if dialErr != nil {
			return struct{}{}, dialErr
		}
		if pingErr := h.Ping(ctx); pingErr != nil {
			h.Close()
			return struct{}{}, pingErr
		}

		s.handle = h
		return struct{}{}, nil
	})

	if err != nil {
		s.healthy = false
		metrics.RecordConnectAttempt("failure")
		metrics.CircuitBreakerConsecutiveFailures.Set(float64(s.cb.Counts().ConsecutiveFailures))
		logging.Warn().Err(err).Msg("Store connection attempt failed")
		return false
	}

	s.healthy = true
	s.lastHealthCheck = time.Now()
	metrics.RecordConnectAttempt("success")
	metrics.CircuitBreakerConsecutiveFailures.Set(0)
	logging.Info().Str("database", s.cfg.Database).Msg("Store connection established")
	return true
}

// GetHandle returns the shared store handle, or nil when the store is
// unavailable. When a health check is due, the current handle is probed
// first; a failed probe triggers a reconnect attempt within this call.
func (s *Supervisor) GetHandle(ctx context.Context) store.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.healthCheckDueLocked() && !s.probeLocked(ctx) {
		logging.Info().Msg("Health check failed, attempting store reconnection")
		s.healthy = false
		s.connectLocked(ctx)
	}

	if s.healthy && s.handle != nil {
		return s.handle
	}

	if s.connectLocked(ctx) {
		return s.handle
	}
	return nil
}

// IsConnected reports current health. A cheap probe runs if the health
// check interval has elapsed; no reconnect is attempted.
func (s *Supervisor) IsConnected(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy || s.handle == nil {
		return false
	}
	if s.healthCheckDueLocked() {
		if !s.probeLocked(ctx) {
			s.healthy = false
			return false
		}
	}
	return true
}

// ForceReconnect marks the connection unhealthy and reconnects, bypassing
// the already-healthy short-circuit. Used by the explicit recovery endpoint.
func (s *Supervisor) ForceReconnect(ctx context.Context) bool {
	logging.Info().Msg("Forcing store reconnection")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = false
	return s.connectLocked(ctx)
}

// Status returns a read-only snapshot for diagnostics. Never performs I/O.
func (s *Supervisor) Status() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cb.State()
	return StatusSnapshot{
		Connected:          s.healthy && s.handle != nil,
		CircuitBreakerOpen: state == gobreaker.StateOpen,
		BreakerState:       stateToString(state),
		FailureCount:       s.cb.Counts().ConsecutiveFailures,
		LastHealthCheck:    s.lastHealthCheck,
		Database:           s.cfg.Database,
	}
}

// Close releases the current handle, if any.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	s.healthy = false
}

// healthCheckDueLocked reports whether the last health check is stale.
func (s *Supervisor) healthCheckDueLocked() bool {
	return time.Since(s.lastHealthCheck) > s.cfg.HealthCheckInterval
}

// probeLocked pings the current handle and refreshes the health timestamp
// on success. A nil handle probes false.
func (s *Supervisor) probeLocked(ctx context.Context) bool {
	if s.handle == nil {
		return false
	}
	if err := s.handle.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Store health check failed")
		metrics.RecordHealthCheck(false)
		return false
	}
	s.lastHealthCheck = time.Now()
	metrics.RecordHealthCheck(true)
	return true
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
