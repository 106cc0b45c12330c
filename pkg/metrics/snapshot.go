// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"time"
)

// CounterProducer is called once per snapshot to obtain a SnapshotCounter's
// current absolute count.
type CounterProducer func() (int64, error)

// GaugeProducer is called once per snapshot to obtain a SnapshotGauge's
// current value.
type GaugeProducer func() (float64, error)

// SnapshotCounter has no Record method: its value is pulled from a
// user-supplied producer closure at PreSerialize time rather than pushed by
// application code. A producer that panics or returns an error is treated as
// "no reading this cycle" and never crashes the collector's snapshot loop.
type SnapshotCounter struct {
	base
	produce CounterProducer
	value   int64
	ok      bool
}

func newSnapshotCounter(key MetricKey, def MetricDefinition, produce CounterProducer) *SnapshotCounter {
	return &SnapshotCounter{base: newBase(key, def), produce: produce}
}

func (c *SnapshotCounter) PreSerialize(now time.Time) {
	c.ok = false
	c.value, c.ok = callCounterProducer(c.produce)
}

func (c *SnapshotCounter) Serialize(w Writer, now time.Time) error {
	if !c.ok {
		return nil
	}
	return w.WriteReading(MetricReading{
		Name:           c.key.FullName,
		Type:           TypeCumulativeCounter,
		Value:          float64(c.value),
		TagsSerialized: c.key.CanonicalTag,
		Timestamp:      now,
	})
}

func callCounterProducer(produce CounterProducer) (value int64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	v, err := produce()
	if err != nil {
		return 0, false
	}
	return v, true
}

// SnapshotGauge mirrors SnapshotCounter but for a gauge-typed, user-pulled
// value (e.g. current queue depth, current temperature).
type SnapshotGauge struct {
	base
	produce GaugeProducer
	value   float64
	ok      bool
}

func newSnapshotGauge(key MetricKey, def MetricDefinition, produce GaugeProducer) *SnapshotGauge {
	return &SnapshotGauge{base: newBase(key, def), produce: produce}
}

func (g *SnapshotGauge) PreSerialize(now time.Time) {
	g.ok = false
	g.value, g.ok = callGaugeProducer(g.produce)
}

func (g *SnapshotGauge) Serialize(w Writer, now time.Time) error {
	if !g.ok {
		return nil
	}
	return w.WriteReading(MetricReading{
		Name:           g.key.FullName,
		Type:           TypeGauge,
		Value:          g.value,
		TagsSerialized: g.key.CanonicalTag,
		Timestamp:      now,
	})
}

func callGaugeProducer(produce GaugeProducer) (value float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	v, err := produce()
	if err != nil {
		return 0, false
	}
	return v, true
}

// snapshotPanicError wraps a recovered producer panic so that, if a caller
// ever wants it, the original panic value is not lost silently.
type snapshotPanicError struct {
	recovered any
}

func (e *snapshotPanicError) Error() string {
	return fmt.Sprintf("snapshot producer panicked: %v", e.recovered)
}
