// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// SamplingGauge holds the last value recorded before each snapshot. Record is
// lock-free: the float64 is bit-cast into an atomic.Uint64, mirroring the
// buffer-chain's avoidance of locks on the hot write path.
type SamplingGauge struct {
	base
	bits      atomic.Uint64
	recorded  atomic.Bool
	pending   float64
	hadValue  bool
}

func newSamplingGauge(key MetricKey, def MetricDefinition) *SamplingGauge {
	return &SamplingGauge{base: newBase(key, def)}
}

// Record stores value as the gauge's current reading, overwriting whatever
// was recorded previously in this snapshot window.
func (g *SamplingGauge) Record(value float64) error {
	if !g.isAttached() {
		return ErrNotAttached
	}
	g.bits.Store(math.Float64bits(value))
	g.recorded.Store(true)
	return nil
}

func (g *SamplingGauge) PreSerialize(now time.Time) {
	g.hadValue = g.recorded.Swap(false)
	if g.hadValue {
		g.pending = math.Float64frombits(g.bits.Load())
	}
}

func (g *SamplingGauge) Serialize(w Writer, now time.Time) error {
	if !g.hadValue {
		return nil
	}
	return w.WriteReading(MetricReading{
		Name:           g.key.FullName,
		Type:           TypeGauge,
		Value:          g.pending,
		TagsSerialized: g.key.CanonicalTag,
		Timestamp:      now,
	})
}
