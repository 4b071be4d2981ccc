// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/medchain-io/medchain/internal/config"
)

// maxErrorBodySize limits how much of an error response body is read back
// for diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024

// Client talks to the document store's REST API.
//
// Endpoints:
//
//	GET  /v1/ping
//	POST /v1/{db}/{collection}/documents
//	GET  /v1/{db}/{collection}/documents?field=value
//
// Every call carries its own bounded timeout (probe_timeout for Ping,
// write_timeout for everything else) layered on top of the caller's context,
// so a hung store cannot stall a caller indefinitely.
type Client struct {
	baseURL      string
	database     string
	probeTimeout time.Duration
	writeTimeout time.Duration
	httpClient   *http.Client
}

// NewClient creates a document store client from the store configuration.
func NewClient(cfg *config.StoreConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		database:     cfg.Database,
		probeTimeout: cfg.ProbeTimeout,
		writeTimeout: cfg.WriteTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Ping issues a liveness probe against the store.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}
	return nil
}

// Insert writes a new document into a collection.
func (c *Client) Insert(ctx context.Context, collection string, doc Document) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectionURL(collection), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("insert into %s failed: %w", collection, err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("insert into %s returned status %d: %s", collection, resp.StatusCode, readBodyForError(resp.Body))
	}
	return nil
}

// FindOne returns the first document whose field equals value, or ErrNotFound.
func (c *Client) FindOne(ctx context.Context, collection, field, value string) (Document, error) {
	docs, err := c.Find(ctx, collection, map[string]string{field: value})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find returns all documents matching the filter.
func (c *Client) Find(ctx context.Context, collection string, filter map[string]string) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	endpoint := c.collectionURL(collection)
	if len(filter) > 0 {
		q := url.Values{}
		for k, v := range filter {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build find request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find in %s failed: %w", collection, err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("find in %s returned status %d: %s", collection, resp.StatusCode, readBodyForError(resp.Body))
	}

	var result struct {
		Documents []Document `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode find response: %w", err)
	}
	return result.Documents, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/v1/%s/%s/documents", c.baseURL, url.PathEscape(c.database), url.PathEscape(collection))
}

// readBodyForError reads up to maxErrorBodySize of a response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		body = append(body, []byte("... (truncated)")...)
	}
	return body
}

func closeBody(body io.ReadCloser) {
	// Drain so the connection can be reused, then close.
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBodySize))
	_ = body.Close()
}
