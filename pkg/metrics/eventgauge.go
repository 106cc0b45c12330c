// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import "time"

// event is one (value, time) sample recorded on an EventGauge.
type event struct {
	value float64
	at    time.Time
}

// EventGauge buffers every value recorded in a snapshot window and emits one
// reading per buffered sample, in the order they were recorded. Unlike
// SamplingGauge it never overwrites; unlike AggregateGauge it never
// summarizes.
type EventGauge struct {
	base
	bag     *bag[event]
	pending []event
}

func newEventGauge(key MetricKey, def MetricDefinition) *EventGauge {
	return &EventGauge{base: newBase(key, def), bag: newBag[event]()}
}

// Record appends value, timestamped now, to this window's buffered events.
func (g *EventGauge) Record(value float64, now time.Time) error {
	if !g.isAttached() {
		return ErrNotAttached
	}
	g.bag.append(event{value: value, at: now})
	return nil
}

func (g *EventGauge) PreSerialize(now time.Time) {
	detached := g.bag.swap()
	g.pending = collect(detached)
}

func (g *EventGauge) Serialize(w Writer, now time.Time) error {
	for _, e := range g.pending {
		if err := w.WriteReading(MetricReading{
			Name:           g.key.FullName,
			Type:           TypeGauge,
			Value:          e.value,
			TagsSerialized: g.key.CanonicalTag,
			Timestamp:      e.at,
		}); err != nil {
			return err
		}
	}
	return nil
}
