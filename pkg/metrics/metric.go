// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"sync/atomic"
	"time"
)

// MetricKey identifies a metric uniquely within a collector: the full
// (prefixed) name plus its canonicalized tag string. Two metrics sharing a
// MetricKey must be the same object (spec §8, invariant 1).
type MetricKey struct {
	FullName     string
	CanonicalTag string
}

// Writer is the per-endpoint sink a metric serializes its readings into.
// Implementations are single-threaded within one snapshot cycle; the core
// never calls a Writer's methods concurrently for the same endpoint.
type Writer interface {
	// WriteReading encodes one reading into the writer's current payload,
	// acquiring/rotating payloads from its PayloadQueue as needed.
	WriteReading(r MetricReading) error
}

// Metric is the polymorphic surface every metric type implements. PreSerialize
// and Serialize are called by exactly one goroutine (the collector's snapshot
// loop) and must never be called concurrently with each other; public
// Record/Increment operations on the concrete types are safe for concurrent
// use from arbitrarily many goroutines.
type Metric interface {
	// Key returns the metric's identity. Stable for the metric's lifetime.
	Key() MetricKey

	// Definition returns the metadata used for periodic metadata pushes.
	Definition() MetricDefinition

	// PreSerialize atomically captures this snapshot window's state (swap
	// accumulators, roll over sample bags, call producer closures, ...).
	// Called once per snapshot, before Serialize.
	PreSerialize(now time.Time)

	// Serialize writes zero or more readings captured by the most recent
	// PreSerialize call into w, stamped with now (EventGauge readings keep
	// the time each event was recorded).
	Serialize(w Writer, now time.Time) error
}

// base is embedded by every concrete metric type. It tracks attachment state
// and identity; concrete types are responsible for their own accumulator
// state and for checking isAttached() before accepting a Record/Increment.
type base struct {
	key        MetricKey
	definition MetricDefinition
	attached   atomic.Bool
}

func newBase(key MetricKey, def MetricDefinition) base {
	return base{key: key, definition: def}
}

func (b *base) Key() MetricKey             { return b.key }
func (b *base) Definition() MetricDefinition { return b.definition }

func (b *base) isAttached() bool { return b.attached.Load() }
func (b *base) attach()          { b.attached.Store(true) }

// attacher is implemented by every concrete metric type via the embedded
// base. The registry uses it to flip a freshly constructed metric into the
// attached state before handing it back to the caller, so that Record/
// Increment/Add calls against it (even racing with the registration call
// itself) see a consistent ErrNotAttached-free metric.
type attacher interface {
	attach()
}

func attachMetric(m Metric) {
	if a, ok := m.(attacher); ok {
		a.attach()
	}
}
