// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medchain-io/medchain/internal/config"
	"github.com/medchain-io/medchain/internal/store"
)

// fakeStore is an in-memory store.Store whose ping behavior is scriptable.
type fakeStore struct {
	mu      sync.Mutex
	pingErr error
	pings   int
	closed  bool
}

func (f *fakeStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeStore) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeStore) Insert(ctx context.Context, collection string, doc store.Document) error {
	return nil
}

func (f *fakeStore) FindOne(ctx context.Context, collection, field, value string) (store.Document, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) Find(ctx context.Context, collection string, filter map[string]string) ([]store.Document, error) {
	return nil, nil
}

func (f *fakeStore) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// countingDialer tracks dial attempts and can be toggled between failing
// and succeeding.
type countingDialer struct {
	mu      sync.Mutex
	dials   int
	failing bool
	stores  []*fakeStore
}

func (d *countingDialer) dial(ctx context.Context) (store.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failing {
		return nil, errors.New("connection refused")
	}
	s := &fakeStore{}
	d.stores = append(d.stores, s)
	return s, nil
}

func (d *countingDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *countingDialer) setFailing(failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = failing
}

func testSupervisorConfig() *config.StoreConfig {
	return &config.StoreConfig{
		URL:                     "http://store.test:8900",
		Database:                "medchain",
		ProbeTimeout:            time.Second,
		WriteTimeout:            time.Second,
		HealthCheckInterval:     30 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     60 * time.Second,
		ConnectMaxAttempts:      3,
		ConnectBackoffBase:      time.Millisecond,
	}
}

func TestConnectSuccess(t *testing.T) {
	d := &countingDialer{}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	if !s.Connect(context.Background()) {
		t.Fatal("Connect() = false against a healthy store")
	}

	st := s.Status()
	if !st.Connected {
		t.Error("Status().Connected = false after successful connect")
	}
	if st.FailureCount != 0 {
		t.Errorf("Status().FailureCount = %d after success, want 0", st.FailureCount)
	}
	if st.CircuitBreakerOpen {
		t.Error("breaker open after successful connect")
	}
	if d.dialCount() != 1 {
		t.Errorf("dial count = %d, want 1", d.dialCount())
	}
}

func TestConnectAlreadyHealthyShortCircuits(t *testing.T) {
	d := &countingDialer{}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	if !s.Connect(context.Background()) {
		t.Fatal("initial Connect() failed")
	}
	if !s.Connect(context.Background()) {
		t.Fatal("second Connect() failed")
	}
	if d.dialCount() != 1 {
		t.Errorf("dial count = %d, want 1 (second connect must not dial)", d.dialCount())
	}
}

func TestConnectRetriesWithBackoff(t *testing.T) {
	d := &countingDialer{failing: true}
	cfg := testSupervisorConfig()
	cfg.BreakerFailureThreshold = 10 // keep the breaker out of this test
	s := NewSupervisor(cfg, d.dial)
	defer s.Close()

	if s.Connect(context.Background()) {
		t.Fatal("Connect() = true against a failing dialer")
	}
	if d.dialCount() != cfg.ConnectMaxAttempts {
		t.Errorf("dial count = %d, want %d", d.dialCount(), cfg.ConnectMaxAttempts)
	}
}

func TestBreakerTripsAfterThresholdFailures(t *testing.T) {
	// Threshold 5: five consecutive failed probes open the breaker, and
	// a later Connect before the reset timeout performs no I/O.
	d := &countingDialer{failing: true}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	// 3 attempts, then 2 more: the 5th failure trips the breaker.
	s.Connect(context.Background())
	s.Connect(context.Background())
	if got := d.dialCount(); got != 5 {
		t.Fatalf("dial count = %d, want 5 (loop must stop once the breaker opens)", got)
	}

	st := s.Status()
	if !st.CircuitBreakerOpen {
		t.Fatal("breaker not open after threshold failures")
	}

	// 6th call while open: rejected with zero network I/O.
	if s.Connect(context.Background()) {
		t.Error("Connect() = true while breaker open")
	}
	if got := d.dialCount(); got != 5 {
		t.Errorf("dial count = %d after open-state connect, want 5 (no I/O while open)", got)
	}
}

func TestBreakerResetAllowsSingleAttempt(t *testing.T) {
	d := &countingDialer{failing: true}
	cfg := testSupervisorConfig()
	cfg.BreakerFailureThreshold = 2
	cfg.BreakerResetTimeout = 50 * time.Millisecond
	cfg.ConnectMaxAttempts = 3
	s := NewSupervisor(cfg, d.dial)
	defer s.Close()

	s.Connect(context.Background()) // trips after 2 failures
	if !s.Status().CircuitBreakerOpen {
		t.Fatal("breaker not open")
	}
	tripped := d.dialCount()

	time.Sleep(cfg.BreakerResetTimeout + 20*time.Millisecond)

	// Half-open: exactly one real attempt, then reopen on failure.
	if s.Connect(context.Background()) {
		t.Error("Connect() = true against failing dialer")
	}
	if got := d.dialCount(); got != tripped+1 {
		t.Errorf("dial count = %d, want %d (exactly one half-open attempt)", got, tripped+1)
	}
	if !s.Status().CircuitBreakerOpen {
		t.Error("breaker did not reopen after failed half-open attempt")
	}
}

func TestBreakerRecoversAfterReset(t *testing.T) {
	d := &countingDialer{failing: true}
	cfg := testSupervisorConfig()
	cfg.BreakerFailureThreshold = 2
	cfg.BreakerResetTimeout = 50 * time.Millisecond
	s := NewSupervisor(cfg, d.dial)
	defer s.Close()

	s.Connect(context.Background())
	if !s.Status().CircuitBreakerOpen {
		t.Fatal("breaker not open")
	}

	d.setFailing(false)
	time.Sleep(cfg.BreakerResetTimeout + 20*time.Millisecond)

	if !s.Connect(context.Background()) {
		t.Fatal("Connect() failed after store recovery")
	}
	st := s.Status()
	if st.CircuitBreakerOpen {
		t.Error("breaker still open after successful recovery")
	}
	if st.FailureCount != 0 {
		t.Errorf("FailureCount = %d after recovery, want 0", st.FailureCount)
	}
}

func TestGetHandleReturnsNilWhenDown(t *testing.T) {
	d := &countingDialer{failing: true}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	if h := s.GetHandle(context.Background()); h != nil {
		t.Error("GetHandle() returned a handle from a failing dialer")
	}
}

func TestGetHandleHealthCheckTriggersReconnect(t *testing.T) {
	d := &countingDialer{}
	cfg := testSupervisorConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	s := NewSupervisor(cfg, d.dial)
	defer s.Close()

	h := s.GetHandle(context.Background())
	if h == nil {
		t.Fatal("initial GetHandle() returned nil")
	}

	// Break the live handle, then wait for the health check to go stale.
	d.stores[0].setPingErr(errors.New("connection reset"))
	time.Sleep(cfg.HealthCheckInterval + 10*time.Millisecond)

	h2 := s.GetHandle(context.Background())
	if h2 == nil {
		t.Fatal("GetHandle() after failed health check returned nil, want reconnected handle")
	}
	if h2 == h {
		t.Error("GetHandle() returned the broken handle instead of reconnecting")
	}
	if !d.stores[0].closed {
		t.Error("stale handle was not closed on reconnect")
	}
}

func TestIsConnectedDoesNotReconnect(t *testing.T) {
	d := &countingDialer{}
	cfg := testSupervisorConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	s := NewSupervisor(cfg, d.dial)
	defer s.Close()

	if s.IsConnected(context.Background()) {
		t.Error("IsConnected() = true before any connect")
	}

	if !s.Connect(context.Background()) {
		t.Fatal("Connect() failed")
	}

	d.stores[0].setPingErr(errors.New("broken pipe"))
	time.Sleep(cfg.HealthCheckInterval + 10*time.Millisecond)

	if s.IsConnected(context.Background()) {
		t.Error("IsConnected() = true with a broken handle")
	}
	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1 (IsConnected must not reconnect)", got)
	}
}

func TestForceReconnect(t *testing.T) {
	d := &countingDialer{}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	if !s.Connect(context.Background()) {
		t.Fatal("Connect() failed")
	}
	if !s.ForceReconnect(context.Background()) {
		t.Fatal("ForceReconnect() failed")
	}
	if got := d.dialCount(); got != 2 {
		t.Errorf("dial count = %d, want 2 (force reconnect must bypass healthy short-circuit)", got)
	}
	if !d.stores[0].closed {
		t.Error("previous handle not closed on force reconnect")
	}
}

func TestStatusNeverDials(t *testing.T) {
	d := &countingDialer{failing: true}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	for i := 0; i < 10; i++ {
		_ = s.Status()
	}
	if got := d.dialCount(); got != 0 {
		t.Errorf("Status() dialed %d times, want 0", got)
	}
}

func TestConcurrentGetHandleSingleDial(t *testing.T) {
	d := &countingDialer{}
	s := NewSupervisor(testSupervisorConfig(), d.dial)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h := s.GetHandle(context.Background()); h == nil {
				t.Error("GetHandle() returned nil under concurrency")
			}
		}()
	}
	wg.Wait()

	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d under concurrent GetHandle, want 1", got)
	}
}
