// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package config provides layered configuration for MedChain.
//
// Configuration is loaded in three layers with increasing precedence:
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or well-known paths)
//  3. Environment variables
//
// See Load for the entry point.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the MedChain backend.
type Config struct {
	Store    StoreConfig    `koanf:"store"`
	Fallback FallbackConfig `koanf:"fallback"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// StoreConfig configures the remote document store and the connection
// supervisor that guards it.
type StoreConfig struct {
	// URL is the base URL of the document store service.
	URL string `koanf:"url"`

	// Database is the logical dataset name within the store.
	Database string `koanf:"database"`

	// ProbeTimeout bounds a single liveness probe.
	ProbeTimeout time.Duration `koanf:"probe_timeout"`

	// WriteTimeout bounds a single document write or lookup.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// HealthCheckInterval is how long a health check result stays fresh.
	HealthCheckInterval time.Duration `koanf:"health_check_interval"`

	// BreakerFailureThreshold is the number of consecutive probe failures
	// that opens the circuit breaker.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`

	// BreakerResetTimeout is the cool-down before a fresh attempt is
	// allowed once the breaker has opened.
	BreakerResetTimeout time.Duration `koanf:"breaker_reset_timeout"`

	// ConnectMaxAttempts is the number of dial attempts per Connect call.
	ConnectMaxAttempts int `koanf:"connect_max_attempts"`

	// ConnectBackoffBase is the base delay between dial attempts. The
	// delay doubles after each failed attempt.
	ConnectBackoffBase time.Duration `koanf:"connect_backoff_base"`
}

// FallbackConfig configures the durable pending-write queue and its
// background retry worker.
type FallbackConfig struct {
	// Path is the JSON snapshot file holding buffered writes.
	Path string `koanf:"path"`

	// MaxRetries is the replay ceiling per buffered write.
	MaxRetries int `koanf:"max_retries"`

	// PollInterval is the worker cadence while healthy.
	PollInterval time.Duration `koanf:"poll_interval"`

	// ErrorPollInterval is the worker cadence after an iteration error.
	ErrorPollInterval time.Duration `koanf:"error_poll_interval"`

	// ReplayTimeout bounds a single replay lookup+insert.
	ReplayTimeout time.Duration `koanf:"replay_timeout"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for internally inconsistent or
// unusable values. It is called by Load after all layers are applied.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	u, err := url.Parse(c.Store.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("store.url %q is not a valid URL", c.Store.URL)
	}
	if c.Store.Database == "" {
		return fmt.Errorf("store.database is required")
	}
	if c.Store.BreakerFailureThreshold < 1 {
		return fmt.Errorf("store.breaker_failure_threshold must be >= 1, got %d", c.Store.BreakerFailureThreshold)
	}
	if c.Store.BreakerResetTimeout <= 0 {
		return fmt.Errorf("store.breaker_reset_timeout must be positive, got %s", c.Store.BreakerResetTimeout)
	}
	if c.Store.ConnectMaxAttempts < 1 {
		return fmt.Errorf("store.connect_max_attempts must be >= 1, got %d", c.Store.ConnectMaxAttempts)
	}
	if c.Store.ProbeTimeout <= 0 || c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("store probe and write timeouts must be positive")
	}
	if c.Store.HealthCheckInterval <= 0 {
		return fmt.Errorf("store.health_check_interval must be positive, got %s", c.Store.HealthCheckInterval)
	}

	if c.Fallback.Path == "" {
		return fmt.Errorf("fallback.path is required")
	}
	if c.Fallback.MaxRetries < 1 {
		return fmt.Errorf("fallback.max_retries must be >= 1, got %d", c.Fallback.MaxRetries)
	}
	if c.Fallback.PollInterval <= 0 || c.Fallback.ErrorPollInterval <= 0 {
		return fmt.Errorf("fallback poll intervals must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	return nil
}
