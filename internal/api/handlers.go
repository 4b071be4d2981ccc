// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package api provides the HTTP surface: registry CRUD with the
// buffered-write fallback path, and the connection diagnostics endpoints.
package api

import (
	"context"
	"time"

	"github.com/medchain-io/medchain/internal/database"
	"github.com/medchain-io/medchain/internal/fallback"
	"github.com/medchain-io/medchain/internal/store"
)

// Version is the reported application version. Overridden at build time via
// -ldflags "-X github.com/medchain-io/medchain/internal/api.Version=...".
var Version = "dev"

// ConnectionManager is the slice of database.Supervisor the handlers need.
type ConnectionManager interface {
	GetHandle(ctx context.Context) store.Store
	IsConnected(ctx context.Context) bool
	ForceReconnect(ctx context.Context) bool
	Status() database.StatusSnapshot
}

// WriteBuffer is the slice of fallback.Queue the handlers need.
type WriteBuffer interface {
	Enqueue(collection, naturalKey string, payload store.Document) (string, error)
	Status() fallback.QueueStatus
}

// WorkerInfo exposes retry worker liveness for the diagnostics endpoints.
type WorkerInfo interface {
	IsRunning() bool
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	conns     ConnectionManager
	buffer    WriteBuffer
	worker    WorkerInfo
	startTime time.Time
}

// NewHandler creates the API handler set.
func NewHandler(conns ConnectionManager, buffer WriteBuffer, worker WorkerInfo) *Handler {
	return &Handler{
		conns:     conns,
		buffer:    buffer,
		worker:    worker,
		startTime: time.Now(),
	}
}

// uptime returns whole seconds since the handler set was created.
func (h *Handler) uptime() int64 {
	return int64(time.Since(h.startTime).Seconds())
}
