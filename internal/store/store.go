// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package store provides the client for the remote document store.
//
// The store is an external network service; this package only knows how to
// talk to it. Connection supervision (health checks, circuit breaking,
// reconnection) lives in internal/database, and offline write buffering in
// internal/fallback.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("store: document not found")

// Document is an untyped document as stored in a collection.
type Document = map[string]interface{}

// Store is the narrow contract the rest of the backend uses to reach the
// document store. Client implements it over HTTP; tests substitute fakes.
type Store interface {
	// Ping issues a lightweight liveness probe.
	Ping(ctx context.Context) error

	// Insert writes a new document into a collection.
	Insert(ctx context.Context, collection string, doc Document) error

	// FindOne returns the first document whose field equals value, or
	// ErrNotFound.
	FindOne(ctx context.Context, collection, field, value string) (Document, error)

	// Find returns all documents matching the filter. An empty filter
	// returns the whole collection.
	Find(ctx context.Context, collection string, filter map[string]string) ([]Document, error)

	// Close releases idle connections held by the client.
	Close()
}
