// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/medchain-io/medchain/internal/config"
)

func testStoreConfig(url string) *config.StoreConfig {
	return &config.StoreConfig{
		URL:          url,
		Database:     "medchain",
		ProbeTimeout: 2 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ping" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(testStoreConfig(srv.URL))
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestClientPingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testStoreConfig(srv.URL))
	defer c.Close()

	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping() succeeded against a 503 store")
	}
}

func TestClientInsert(t *testing.T) {
	var gotPath string
	var gotDoc Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotDoc); err != nil {
			t.Errorf("failed to decode insert body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(testStoreConfig(srv.URL))
	defer c.Close()

	doc := Document{"wallet_address": "0xabc", "name": "City Hospital"}
	if err := c.Insert(context.Background(), "institutions", doc); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	if gotPath != "/v1/medchain/institutions/documents" {
		t.Errorf("insert path = %q", gotPath)
	}
	if gotDoc["wallet_address"] != "0xabc" {
		t.Errorf("inserted doc = %v", gotDoc)
	}
}

func TestClientFindOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("wallet_address"); got != "0xabc" {
			t.Errorf("filter wallet_address = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"documents": []Document{{"wallet_address": "0xabc", "name": "X"}},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(testStoreConfig(srv.URL))
	defer c.Close()

	doc, err := c.FindOne(context.Background(), "patients", "wallet_address", "0xabc")
	if err != nil {
		t.Fatalf("FindOne() failed: %v", err)
	}
	if doc["name"] != "X" {
		t.Errorf("FindOne() doc = %v", doc)
	}
}

func TestClientFindOneNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"documents":[]}`)); err != nil {
			t.Errorf("write failed: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(testStoreConfig(srv.URL))
	defer c.Close()

	_, err := c.FindOne(context.Background(), "patients", "wallet_address", "0xmissing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FindOne() error = %v, want ErrNotFound", err)
	}
}

func TestClientFindUnreachable(t *testing.T) {
	// Point at a server that is already closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(testStoreConfig(srv.URL))
	defer c.Close()

	if _, err := c.Find(context.Background(), "patients", nil); err == nil {
		t.Error("Find() succeeded against closed server")
	}
}

func TestClientProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	cfg := testStoreConfig(srv.URL)
	cfg.ProbeTimeout = 50 * time.Millisecond
	c := NewClient(cfg)
	defer c.Close()

	start := time.Now()
	err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping() against hung server succeeded")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Ping() took %s, timeout not applied", elapsed)
	}
}
