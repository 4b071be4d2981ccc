// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package models

import (
	"time"
)

// APIResponse is the standardized envelope for all HTTP endpoints.
//
// Status is "success", "buffered" (write accepted into the fallback queue
// while the store is down) or "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error payload.
//
// Error codes used by the API:
//   - VALIDATION_ERROR: invalid request payload
//   - DUPLICATE_ENTITY: wallet address already registered
//   - NOT_FOUND: no document matches
//   - STORE_UNAVAILABLE: store down and the operation cannot be buffered
//   - INTERNAL_ERROR: unexpected failure (including fallback persist errors)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// BufferedWrite is the 202 response body for a write absorbed by the
// fallback queue. SyncStatus is always "pending".
type BufferedWrite struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	SyncStatus string `json:"sync_status"`
}

// HealthStatus is the /api/health response body.
type HealthStatus struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Database      DatabaseHealth `json:"database"`
	Fallback      FallbackHealth `json:"fallback"`
	Timestamp     time.Time      `json:"timestamp"`
}

// DatabaseHealth summarizes store connectivity for /api/health.
type DatabaseHealth struct {
	Connected          bool   `json:"connected"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
	Database           string `json:"database"`
}

// FallbackHealth summarizes the pending-write queue for /api/health.
type FallbackHealth struct {
	WorkerRunning bool `json:"worker_running"`
	PendingWrites int  `json:"pending_writes"`
}
