// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Store.BreakerFailureThreshold != 5 {
		t.Errorf("default breaker threshold = %d, want 5", cfg.Store.BreakerFailureThreshold)
	}
	if cfg.Store.BreakerResetTimeout != 60*time.Second {
		t.Errorf("default breaker reset = %s, want 60s", cfg.Store.BreakerResetTimeout)
	}
	if cfg.Store.HealthCheckInterval != 30*time.Second {
		t.Errorf("default health check interval = %s, want 30s", cfg.Store.HealthCheckInterval)
	}
	if cfg.Fallback.MaxRetries != 5 {
		t.Errorf("default max retries = %d, want 5", cfg.Fallback.MaxRetries)
	}
	if cfg.Fallback.PollInterval != 30*time.Second {
		t.Errorf("default poll interval = %s, want 30s", cfg.Fallback.PollInterval)
	}
	if cfg.Server.Port != 8001 {
		t.Errorf("default port = %d, want 8001", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORE_URL", "http://store.internal:9000")
	t.Setenv("STORE_DATABASE", "medchain_test")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "3")
	t.Setenv("FALLBACK_POLL_INTERVAL", "10s")
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Store.URL != "http://store.internal:9000" {
		t.Errorf("store URL = %q", cfg.Store.URL)
	}
	if cfg.Store.Database != "medchain_test" {
		t.Errorf("store database = %q", cfg.Store.Database)
	}
	if cfg.Store.BreakerFailureThreshold != 3 {
		t.Errorf("breaker threshold = %d, want 3", cfg.Store.BreakerFailureThreshold)
	}
	if cfg.Fallback.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %s, want 10s", cfg.Fallback.PollInterval)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Server.Port)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("cors origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("cors origins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("store:\n  url: http://file.example:8900\n  database: filedb\nserver:\n  port: 7000\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Store.URL != "http://file.example:8900" {
		t.Errorf("store URL = %q, want file value", cfg.Store.URL)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Server.Port)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 7500 {
		t.Errorf("port = %d, want env value 7500", cfg.Server.Port)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing store url", func(c *Config) { c.Store.URL = "" }},
		{"malformed store url", func(c *Config) { c.Store.URL = "not a url" }},
		{"missing database", func(c *Config) { c.Store.Database = "" }},
		{"zero breaker threshold", func(c *Config) { c.Store.BreakerFailureThreshold = 0 }},
		{"negative reset timeout", func(c *Config) { c.Store.BreakerResetTimeout = -time.Second }},
		{"zero connect attempts", func(c *Config) { c.Store.ConnectMaxAttempts = 0 }},
		{"zero probe timeout", func(c *Config) { c.Store.ProbeTimeout = 0 }},
		{"missing fallback path", func(c *Config) { c.Fallback.Path = "" }},
		{"zero max retries", func(c *Config) { c.Fallback.MaxRetries = 0 }},
		{"zero poll interval", func(c *Config) { c.Fallback.PollInterval = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted invalid config")
			}
		})
	}
}

func TestEnvTransformSkipsUnknown(t *testing.T) {
	if got := envTransformFunc("RANDOM_HOST_VAR"); got != "" {
		t.Errorf("unknown env var mapped to %q, want empty", got)
	}
	if got := envTransformFunc("STORE_URL"); got != "store.url" {
		t.Errorf("STORE_URL mapped to %q", got)
	}
}
