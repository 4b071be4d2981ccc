// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package api

import (
	"net/http"
	"time"

	"github.com/medchain-io/medchain/internal/models"
)

// Health handles GET /api/health. The service reports "degraded" rather
// than unhealthy when the store is down: reads fail but writes are still
// being accepted into the fallback queue.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	dbStatus := h.conns.Status()
	queueStatus := h.buffer.Status()

	status := "healthy"
	if !dbStatus.Connected {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:        status,
		Version:       Version,
		UptimeSeconds: h.uptime(),
		Database: models.DatabaseHealth{
			Connected:          dbStatus.Connected,
			CircuitBreakerOpen: dbStatus.CircuitBreakerOpen,
			Database:           dbStatus.Database,
		},
		Fallback: models.FallbackHealth{
			WorkerRunning: h.worker.IsRunning(),
			PendingWrites: queueStatus.PendingCount,
		},
		Timestamp: time.Now().UTC(),
	}, started)
}

// HealthLive handles GET /health/live. Process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"alive"}`))
}

// HealthReady handles GET /health/ready. Ready means the process can serve
// requests; a down store still counts as ready because the write path
// degrades to buffering instead of failing.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// DBStatus handles GET /api/db/status. Reports supervisor state without
// performing any store I/O, so it is safe to poll during an outage.
func (h *Handler) DBStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.conns.Status(), time.Now())
}

// DBReconnect handles POST /api/db/reconnect. Explicitly drops the current
// connection and dials again, reporting the resulting supervisor state.
func (h *Handler) DBReconnect(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reconnected := h.conns.ForceReconnect(r.Context())

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"reconnected": reconnected,
		"database":    h.conns.Status(),
	}, started)
}

// FallbackStatus handles GET /api/fallback/status.
func (h *Handler) FallbackStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := h.buffer.Status()

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"pending_count":   status.PendingCount,
		"pending_by_type": status.PendingByType,
		"running":         h.worker.IsRunning(),
	}, started)
}
