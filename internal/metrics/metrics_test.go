// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(7)
	if got := testutil.ToFloat64(FallbackQueueDepth); got != 7 {
		t.Errorf("queue depth gauge = %v, want 7", got)
	}
	SetQueueDepth(0)
	if got := testutil.ToFloat64(FallbackQueueDepth); got != 0 {
		t.Errorf("queue depth gauge = %v, want 0", got)
	}
}

func TestRecordReplayOutcomes(t *testing.T) {
	before := testutil.ToFloat64(FallbackReplays.WithLabelValues("success"))
	RecordReplay("success")
	after := testutil.ToFloat64(FallbackReplays.WithLabelValues("success"))
	if after != before+1 {
		t.Errorf("replay success counter = %v, want %v", after, before+1)
	}
}

func TestRecordConnectAttempt(t *testing.T) {
	before := testutil.ToFloat64(StoreConnectAttempts.WithLabelValues("failure"))
	RecordConnectAttempt("failure")
	after := testutil.ToFloat64(StoreConnectAttempts.WithLabelValues("failure"))
	if after != before+1 {
		t.Errorf("connect attempts counter = %v, want %v", after, before+1)
	}
}

func TestRecordHealthCheck(t *testing.T) {
	before := testutil.ToFloat64(StoreHealthChecks.WithLabelValues("unhealthy"))
	RecordHealthCheck(false)
	after := testutil.ToFloat64(StoreHealthChecks.WithLabelValues("unhealthy"))
	if after != before+1 {
		t.Errorf("health check counter = %v, want %v", after, before+1)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/health", "200"))
	RecordAPIRequest("GET", "/api/health", 200, 5*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/health", "200"))
	if after != before+1 {
		t.Errorf("api requests counter = %v, want %v", after, before+1)
	}
}
