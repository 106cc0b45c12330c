// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"sync/atomic"
	"time"
)

// Counter accumulates a running int64 total between snapshots and reports the
// delta observed since the previous PreSerialize, then resets to zero.
// Increment/Add are safe for concurrent use from any number of goroutines;
// PreSerialize/Serialize are called only by the collector's snapshot loop.
type Counter struct {
	base
	value   atomic.Int64
	pending int64 // delta captured by the most recent PreSerialize
}

func newCounter(key MetricKey, def MetricDefinition) *Counter {
	return &Counter{base: newBase(key, def)}
}

// Increment adds 1 to the counter. Returns ErrNotAttached if the counter has
// not yet been registered with a collector.
func (c *Counter) Increment() error { return c.Add(1) }

// Add adds delta (which may be negative, though counters are conventionally
// monotonic) to the counter.
func (c *Counter) Add(delta int64) error {
	if !c.isAttached() {
		return ErrNotAttached
	}
	c.value.Add(delta)
	return nil
}

func (c *Counter) PreSerialize(now time.Time) {
	c.pending = c.value.Swap(0)
}

func (c *Counter) Serialize(w Writer, now time.Time) error {
	return w.WriteReading(MetricReading{
		Name:           c.key.FullName,
		Type:           TypeCounter,
		Value:          float64(c.pending),
		TagsSerialized: c.key.CanonicalTag,
		Timestamp:      now,
	})
}

// CumulativeCounter is like Counter but never resets: each snapshot reports
// the absolute value accumulated since the metric was created, making it
// resistant to the collector's own restarts within the same process (but not
// across process restarts -- see spec §1 Non-goals).
type CumulativeCounter struct {
	base
	value   atomic.Int64
	pending int64
}

func newCumulativeCounter(key MetricKey, def MetricDefinition) *CumulativeCounter {
	return &CumulativeCounter{base: newBase(key, def)}
}

func (c *CumulativeCounter) Increment() error { return c.Add(1) }

func (c *CumulativeCounter) Add(delta int64) error {
	if !c.isAttached() {
		return ErrNotAttached
	}
	c.value.Add(delta)
	return nil
}

func (c *CumulativeCounter) PreSerialize(now time.Time) {
	c.pending = c.value.Load()
}

func (c *CumulativeCounter) Serialize(w Writer, now time.Time) error {
	return w.WriteReading(MetricReading{
		Name:           c.key.FullName,
		Type:           TypeCumulativeCounter,
		Value:          float64(c.pending),
		TagsSerialized: c.key.CanonicalTag,
		Timestamp:      now,
	})
}
