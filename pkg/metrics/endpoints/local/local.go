// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package local implements an in-process metrics.Handler that keeps only the
// most recent reading per metric name+suffix in memory, for tests and for
// exposing "what did we just report" without standing up an external
// backend. It never writes wire bytes and its Flush is a no-op: readings are
// already visible the moment WriteReading stores them.
package local

import (
	"context"
	"sync"

	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
)

// Handler is a process-local sink. Zero value is not usable; use New.
type Handler struct {
	mu       sync.RWMutex
	latest   map[string]metrics.MetricReading
	metadata map[string]metrics.MetricDefinition
}

func New() *Handler {
	return &Handler{
		latest:   make(map[string]metrics.MetricReading),
		metadata: make(map[string]metrics.MetricDefinition),
	}
}

// NewEndpoint wraps a fresh Handler in a MetricEndpoint with a minimal
// PayloadQueue (the handler never actually queues payload bytes, so its
// bound is irrelevant), ready to pass straight into Options.Endpoints.
func NewEndpoint(name string) *metrics.MetricEndpoint {
	h := New()
	q := metrics.NewPayloadQueue(1, 1, false)
	return metrics.NewMetricEndpoint(name, h, q, 0, 0)
}

func (h *Handler) CreateWriter() metrics.Writer { return &writer{h: h} }

func (h *Handler) BeginBatch() {}

// Flush is a no-op: WriteReading already made every reading visible.
func (h *Handler) Flush(ctx context.Context, payloads []*metrics.Payload) error { return nil }

func (h *Handler) SerializeMetadata(ctx context.Context, defs []metrics.MetricDefinition) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range defs {
		h.metadata[d.FullName] = d
	}
	return nil
}

func (h *Handler) Dispose() {}

// Snapshot returns a copy of the most recent reading seen for every
// metric name+suffix.
func (h *Handler) Snapshot() map[string]metrics.MetricReading {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]metrics.MetricReading, len(h.latest))
	for k, v := range h.latest {
		out[k] = v
	}
	return out
}

// Metadata returns a copy of every metric definition received so far, keyed
// by full name.
func (h *Handler) Metadata() map[string]metrics.MetricDefinition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]metrics.MetricDefinition, len(h.metadata))
	for k, v := range h.metadata {
		out[k] = v
	}
	return out
}

type writer struct {
	h *Handler
}

func (w *writer) WriteReading(r metrics.MetricReading) error {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	w.h.latest[r.FullName()] = r
	return nil
}
