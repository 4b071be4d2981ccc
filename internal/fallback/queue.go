// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package fallback

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/medchain-io/medchain/internal/logging"
	"github.com/medchain-io/medchain/internal/metrics"
	"github.com/medchain-io/medchain/internal/store"
)

// QueueStatus is the diagnostics view of the queue.
type QueueStatus struct {
	PendingCount  int            `json:"pending_count"`
	PendingByType map[string]int `json:"pending_by_type"`
}

// Queue is the durable pending-write queue.
//
// The in-memory record set is authoritative; it is mirrored to the snapshot
// file after every mutation inside the same critical section, so concurrent
// enqueues and worker removals can never produce a torn snapshot. A persist
// failure does not roll back the in-memory mutation: availability wins, and
// the gap (mutations since the last good persist are lost on crash) is an
// accepted trade-off surfaced through logs and metrics.
type Queue struct {
	path       string
	maxRetries int

	mu      sync.Mutex
	records map[string]*PendingWrite
}

// NewQueue creates the queue and loads any previously persisted records.
// A missing snapshot file is a normal first run, not an error. An
// unreadable snapshot is logged and the queue starts empty.
func NewQueue(path string, maxRetries int) *Queue {
	q := &Queue{
		path:       path,
		maxRetries: maxRetries,
		records:    make(map[string]*PendingWrite),
	}
	q.loadFromFile()

	metrics.SetQueueDepth(len(q.records))
	logging.Info().
		Int("pending", len(q.records)).
		Str("path", path).
		Msg("Fallback queue initialized")
	return q
}

// loadFromFile restores the persisted record set, including retry counts,
// so a restart resumes replay instead of losing progress.
func (q *Queue) loadFromFile() {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Error().Err(err).Str("path", q.path).Msg("Failed to read fallback queue snapshot")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.Error().Err(err).Str("path", q.path).Msg("Failed to parse fallback queue snapshot")
		return
	}

	for i := range snap.Records {
		rec := snap.Records[i]
		q.records[rec.ID] = &rec
	}
}

// persistLocked writes the full record set to the snapshot file using the
// temp-file-then-rename pattern, so readers only ever observe a complete
// snapshot. mu must be held.
func (q *Queue) persistLocked() error {
	snap := snapshot{
		Timestamp: time.Now().UTC(),
		Records:   q.listLocked(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue snapshot: %w", err)
	}

	tmpPath := q.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write queue snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, q.path); err != nil {
		return fmt.Errorf("failed to replace queue snapshot: %w", err)
	}
	return nil
}

// persistAndLogLocked persists and converts a failure into a log line and
// metric rather than rolling back. Returns the persist error for callers
// that want to surface it.
func (q *Queue) persistAndLogLocked() error {
	err := q.persistLocked()
	if err != nil {
		metrics.FallbackPersistErrors.Inc()
		logging.Error().Err(err).Str("path", q.path).Msg("Failed to persist fallback queue")
	}
	return err
}

// Enqueue buffers a write for later replay and synchronously persists the
// queue. The returned id identifies the buffered record. The record is
// always inserted in memory; a non-nil error reports that persisting the
// snapshot failed.
func (q *Queue) Enqueue(collection, naturalKey string, payload store.Document) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec := &PendingWrite{
		ID:         uuid.New().String(),
		Collection: collection,
		NaturalKey: naturalKey,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
		RetryCount: 0,
		MaxRetries: q.maxRetries,
	}
	q.records[rec.ID] = rec

	metrics.FallbackEnqueued.WithLabelValues(collection).Inc()
	metrics.SetQueueDepth(len(q.records))
	logging.Info().
		Str("id", rec.ID).
		Str("collection", collection).
		Str("natural_key", naturalKey).
		Msg("Buffered write for later sync")

	return rec.ID, q.persistAndLogLocked()
}

// Get returns a copy of the record with the given id.
func (q *Queue) Get(id string) (PendingWrite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[id]
	if !ok {
		return PendingWrite{}, false
	}
	return rec.clone(), true
}

// Remove deletes a record (after successful replay) and re-persists.
// Reports whether the record existed.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.records[id]; !ok {
		return false
	}
	delete(q.records, id)
	metrics.SetQueueDepth(len(q.records))
	_ = q.persistAndLogLocked()
	return true
}

// List returns a snapshot copy of all records ordered by enqueue time, so
// replay processes writes in their original order without holding the lock
// during iteration.
func (q *Queue) List() []PendingWrite {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.listLocked()
}

// listLocked builds the ordered snapshot; mu must be held.
func (q *Queue) listLocked() []PendingWrite {
	out := make([]PendingWrite, 0, len(q.records))
	for _, rec := range q.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out
}

// IncrementRetry bumps a record's retry count after a failed replay.
// Reaching the retry ceiling removes the record instead; the false return
// signals the record was permanently dropped (or did not exist).
func (q *Queue) IncrementRetry(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[id]
	if !ok {
		return false
	}

	rec.RetryCount++
	if rec.RetryCount >= rec.MaxRetries {
		logging.Warn().
			Str("id", id).
			Str("collection", rec.Collection).
			Str("natural_key", rec.NaturalKey).
			Int("retries", rec.RetryCount).
			Msg("Buffered write exceeded max retries, dropping")
		delete(q.records, id)
		metrics.SetQueueDepth(len(q.records))
		_ = q.persistAndLogLocked()
		return false
	}

	_ = q.persistAndLogLocked()
	return true
}

// Len returns the number of buffered writes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Status returns the diagnostics view of the queue.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	byType := make(map[string]int)
	for _, rec := range q.records {
		byType[rec.Collection]++
	}
	return QueueStatus{
		PendingCount:  len(q.records),
		PendingByType: byType,
	}
}
