// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SelfMetrics exposes the collector's own health as Prometheus metrics:
// how many payloads have been dropped per endpoint, and each endpoint's
// current queue depth. It satisfies spec's requirement for an internal
// self-metric independent of whatever endpoints the application itself
// configured (an app can run a Bosun+statsd collector while still scraping
// these via Prometheus).
type SelfMetrics struct {
	registry *prometheus.Registry

	droppedPayloads *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

// NewSelfMetrics creates a fresh self-metrics registry. Call Attach to wire
// it to a collector's endpoints before or after NewCollector.
func NewSelfMetrics() *SelfMetrics {
	reg := prometheus.NewRegistry()

	sm := &SelfMetrics{
		registry: reg,
		droppedPayloads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cc_metrics_client",
			Name:      "dropped_payloads_total",
			Help:      "Payloads dropped from an endpoint's queue because it exceeded max-payload-count.",
		}, []string{"endpoint"}),
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cc_metrics_client",
			Name:      "queue_depth",
			Help:      "Number of payloads currently pending or awaiting retry for an endpoint.",
		}, []string{"endpoint"}),
	}

	return sm
}

// Attach wires sm to every endpoint in endpoints: the dropped-payload
// counter is fed by each endpoint's PayloadQueue drop handler. Attach starts
// no background work; the queue depth gauge changes only when Observe is
// called.
func (sm *SelfMetrics) Attach(endpoints []*MetricEndpoint) {
	for _, ep := range endpoints {
		name := ep.Name
		ep.Queue.SetDropHandler(func(n int) {
			sm.droppedPayloads.WithLabelValues(name).Add(float64(n))
		})
	}
}

// Observe refreshes the queue-depth gauge from each endpoint's current
// state. Intended to be called from the same snapshot cadence as the
// collector itself, or on its own short ticker.
func (sm *SelfMetrics) Observe(endpoints []*MetricEndpoint) {
	for _, ep := range endpoints {
		sm.queueDepth.WithLabelValues(ep.Name).Set(float64(ep.Queue.Depth()))
	}
}

// Handler returns an http.Handler serving these metrics in the Prometheus
// exposition format, for mounting under e.g. /metrics.
func (sm *SelfMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(sm.registry, promhttp.HandlerOpts{})
}
