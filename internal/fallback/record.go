// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package fallback durably buffers document writes the store could not
// accept and replays them once the store is reachable again.
//
// The Queue holds buffered writes in memory and mirrors the full set to a
// JSON snapshot file after every mutation, so buffered writes survive
// process restarts. The Worker drains the queue in the background,
// deduplicating replays by natural key so at-least-once delivery never
// creates duplicate documents.
package fallback

import (
	"time"

	"github.com/medchain-io/medchain/internal/store"
)

// PendingWrite is one buffered document write awaiting replay.
//
// NaturalKey identifies the intended document across retries (for the
// MedChain registries this is the lowercased wallet address); replay uses
// it to detect writes that already reached the store.
type PendingWrite struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	NaturalKey string         `json:"natural_key"`
	Payload    store.Document `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// clone returns a deep-enough copy for handing records outside the queue's
// lock. Payload values are shared; callers must not mutate them.
func (p *PendingWrite) clone() PendingWrite {
	out := *p
	out.Payload = make(store.Document, len(p.Payload))
	for k, v := range p.Payload {
		out.Payload[k] = v
	}
	return out
}

// snapshot is the persisted representation of the whole queue.
type snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Records   []PendingWrite `json:"records"`
}
