// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersObservableViaHandler(t *testing.T) {
	m := New()
	m.RoundsStarted.Inc()
	m.RoundsStarted.Inc()
	m.WaitForAllRejected.Inc()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rr, req)

	body := rr.Body.String()
	require.Contains(t, body, "synchromesh_sync_rounds_started_total 2")
	require.Contains(t, body, "synchromesh_wait_for_all_rejected_total 1")
}

func TestInFlightGaugeTracksConcurrentRounds(t *testing.T) {
	m := New()
	m.InFlight.Inc()
	m.InFlight.Inc()
	m.InFlight.Dec()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rr, req)

	require.Contains(t, rr.Body.String(), "synchromesh_sync_rounds_in_flight 1")
}
