// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes the process's own Prometheus instrumentation:
// sync round counters, round latency, in-flight update count, and the
// wait_for_all rejection counter (see the update protocol's fatal path
// for wait_for_all=true). This is the worker process's own health
// surface, not a consumer of someone else's metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns one private registry and every gauge/counter/histogram a
// worker process reports. Construct one per process with New and serve
// Handler() with http.ListenAndServe (or mount it on an existing mux).
type Metrics struct {
	registry *prometheus.Registry

	RoundsStarted      prometheus.Counter
	RoundsCompleted    prometheus.Counter
	RoundLatency       prometheus.Histogram
	InFlight           prometheus.Gauge
	WaitForAllRejected prometheus.Counter
}

// New builds and registers a fresh Metrics instance.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synchromesh_sync_rounds_started_total",
			Help: "Number of update rounds a worker has initiated.",
		}),
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synchromesh_sync_rounds_completed_total",
			Help: "Number of update rounds a worker has received a global snapshot for.",
		}),
		RoundLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "synchromesh_sync_round_latency_seconds",
			Help:    "Wall-clock time from kUpdateStart send to the global snapshot landing.",
			Buckets: prometheus.DefBuckets,
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "synchromesh_sync_rounds_in_flight",
			Help: "Number of update rounds currently awaiting a global snapshot.",
		}),
		WaitForAllRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synchromesh_wait_for_all_rejected_total",
			Help: "Number of update calls rejected for requesting the unimplemented wait_for_all=true barrier semantics.",
		}),
	}

	reg.MustRegister(
		m.RoundsStarted,
		m.RoundsCompleted,
		m.RoundLatency,
		m.InFlight,
		m.WaitForAllRejected,
	)
	return m
}

// Handler returns the http.Handler serving this instance's registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
