// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package fallback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/medchain-io/medchain/internal/config"
	"github.com/medchain-io/medchain/internal/logging"
	"github.com/medchain-io/medchain/internal/metrics"
	"github.com/medchain-io/medchain/internal/store"
)

// NaturalKeyField is the document field replay matches against when
// checking whether a buffered write already reached the store.
const NaturalKeyField = "wallet_address"

// HandleProvider hands out a store handle when the store is reachable.
// Implemented by database.Supervisor.
type HandleProvider interface {
	GetHandle(ctx context.Context) store.Store
}

// Worker is the background loop that reconciles the queue against the
// store. Request handlers never wait on it; it polls on its own timer and
// backs off when an iteration hits replay errors, so a down store is not
// hammered.
type Worker struct {
	queue *Queue
	conns HandleProvider
	cfg   *config.FallbackConfig

	// Lifecycle state, protected by mu.
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	stopping bool          // true while Stop() waits for the goroutine
	stopDone chan struct{} // closed when the goroutine exits
}

// NewWorker creates a retry worker bound to the queue and the connection
// supervisor. Call Start (or run it under a supervision tree via Serve).
func NewWorker(queue *Queue, conns HandleProvider, cfg *config.FallbackConfig) *Worker {
	return &Worker{
		queue: queue,
		conns: conns,
		cfg:   cfg,
	}
}

// Start launches the background loop. It is a no-op when already running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()

	// Wait for any in-progress Stop() to finish.
	for w.stopping {
		stopDone := w.stopDone
		w.mu.Unlock()
		<-stopDone
		w.mu.Lock()
	}

	if w.running {
		w.mu.Unlock()
		return nil
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.stopDone = make(chan struct{})

	loopCtx := w.ctx
	done := w.stopDone
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.run(loopCtx)
	}()

	logging.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("max_retries", w.cfg.MaxRetries).
		Msg("Fallback retry worker started")
	return nil
}

// Stop cancels the loop and waits for it to fully exit before returning,
// so shutdown leaves no orphaned replay in flight.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running || w.stopping {
		w.mu.Unlock()
		return
	}

	w.cancel()
	w.running = false
	w.stopping = true
	stopDone := w.stopDone
	w.mu.Unlock()

	<-stopDone

	w.mu.Lock()
	w.stopping = false
	w.mu.Unlock()

	logging.Info().Msg("Fallback retry worker stopped")
}

// IsRunning reports whether the background loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run is the worker goroutine. The iteration cadence stretches to the
// error interval after a pass that hit replay failures.
func (w *Worker) run(ctx context.Context) {
	for {
		hadErrors := w.processPending(ctx)

		interval := w.cfg.PollInterval
		if hadErrors {
			interval = w.cfg.ErrorPollInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// replayResult tracks the outcome of replaying a single record.
type replayResult int

const (
	replayResultSuccess replayResult = iota
	replayResultAlreadySynced
	replayResultFailed
	replayResultDropped
	replayResultCanceled
)

// processPending replays the current queue snapshot against the store.
// Returns true when any replay failed, which stretches the poll interval.
func (w *Worker) processPending(ctx context.Context) bool {
	pending := w.queue.List()
	if len(pending) == 0 {
		return false
	}

	handle := w.conns.GetHandle(ctx)
	if handle == nil {
		logging.Debug().Int("pending", len(pending)).Msg("Store unavailable, skipping replay")
		return false
	}

	logging.Info().Int("pending", len(pending)).Msg("Replaying buffered writes")

	var synced, failed, dropped int
	for i := range pending {
		select {
		case <-ctx.Done():
			return failed > 0
		default:
		}

		switch w.replayRecord(ctx, handle, &pending[i]) {
		case replayResultSuccess, replayResultAlreadySynced:
			synced++
		case replayResultFailed:
			failed++
		case replayResultDropped:
			dropped++
		case replayResultCanceled:
			return failed > 0
		}
	}

	logging.Info().
		Int("synced", synced).
		Int("failed", failed).
		Int("dropped", dropped).
		Msg("Replay pass complete")
	return failed > 0
}

// replayRecord applies one buffered write as an idempotent upsert by
// natural key: a document that already exists means a prior attempt (or
// another writer) won, so the record is simply removed. Re-running a
// replay that already succeeded is a no-op, never a duplicate.
func (w *Worker) replayRecord(ctx context.Context, handle store.Store, rec *PendingWrite) replayResult {
	opCtx, cancel := context.WithTimeout(ctx, w.cfg.ReplayTimeout)
	defer cancel()

	existing, err := handle.FindOne(opCtx, rec.Collection, NaturalKeyField, rec.NaturalKey)
	switch {
	case err == nil && existing != nil:
		logging.Info().
			Str("id", rec.ID).
			Str("collection", rec.Collection).
			Str("natural_key", rec.NaturalKey).
			Msg("Buffered write already present in store")
		w.queue.Remove(rec.ID)
		metrics.RecordReplay("already_synced")
		return replayResultAlreadySynced

	case errors.Is(err, store.ErrNotFound):
		// Not yet applied; insert below.

	default:
		return w.recordFailure(ctx, rec, err)
	}

	doc := make(store.Document, len(rec.Payload)+1)
	for k, v := range rec.Payload {
		doc[k] = v
	}
	// The document keeps its original write time, not the replay time.
	doc["created_at"] = rec.EnqueuedAt.Format(time.RFC3339)

	if err := handle.Insert(opCtx, rec.Collection, doc); err != nil {
		return w.recordFailure(ctx, rec, err)
	}

	logging.Info().
		Str("id", rec.ID).
		Str("collection", rec.Collection).
		Str("natural_key", rec.NaturalKey).
		Msg("Buffered write replayed")
	w.queue.Remove(rec.ID)
	metrics.RecordReplay("success")
	return replayResultSuccess
}

// recordFailure bumps the retry counter and reports whether the record was
// permanently dropped.
func (w *Worker) recordFailure(ctx context.Context, rec *PendingWrite, err error) replayResult {
	if ctx.Err() != nil {
		return replayResultCanceled
	}

	logging.Error().
		Err(err).
		Str("id", rec.ID).
		Str("collection", rec.Collection).
		Int("attempt", rec.RetryCount+1).
		Msg("Replay failed")

	if !w.queue.IncrementRetry(rec.ID) {
		logging.Error().
			Str("id", rec.ID).
			Str("collection", rec.Collection).
			Str("natural_key", rec.NaturalKey).
			Msg("Buffered write permanently lost after max retries")
		metrics.RecordReplay("dropped")
		return replayResultDropped
	}

	metrics.RecordReplay("failure")
	return replayResultFailed
}
