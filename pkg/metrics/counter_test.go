// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"testing"
	"time"
)

type recordingWriter struct {
	readings []MetricReading
}

func (w *recordingWriter) WriteReading(r MetricReading) error {
	w.readings = append(w.readings, r)
	return nil
}

func newAttachedCounter() *Counter {
	c := newCounter(MetricKey{FullName: "requests"}, MetricDefinition{MetricType: TypeCounter})
	c.attach()
	return c
}

func TestCounterNotAttachedRejectsAdd(t *testing.T) {
	c := newCounter(MetricKey{FullName: "requests"}, MetricDefinition{})
	if err := c.Add(1); err != ErrNotAttached {
		t.Fatalf("Add on unattached counter = %v, want ErrNotAttached", err)
	}
}

func TestCounterReportsDeltaThenResets(t *testing.T) {
	c := newAttachedCounter()
	now := time.Now()

	c.Increment()
	c.Add(4)
	c.PreSerialize(now)

	w := &recordingWriter{}
	if err := c.Serialize(w, now); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(w.readings) != 1 || w.readings[0].Value != 5 {
		t.Fatalf("readings = %+v, want single reading of value 5", w.readings)
	}

	// A window with no activity still emits a zero-delta reading.
	c.PreSerialize(now)
	w2 := &recordingWriter{}
	if err := c.Serialize(w2, now); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(w2.readings) != 1 || w2.readings[0].Value != 0 {
		t.Fatalf("readings = %+v, want single zero-delta reading", w2.readings)
	}
}

func TestCumulativeCounterNeverResets(t *testing.T) {
	c := newCumulativeCounter(MetricKey{FullName: "total"}, MetricDefinition{MetricType: TypeCumulativeCounter})
	c.attach()
	now := time.Now()

	c.Add(10)
	c.PreSerialize(now)
	w := &recordingWriter{}
	c.Serialize(w, now)
	if w.readings[0].Value != 10 {
		t.Fatalf("first snapshot = %v, want 10", w.readings[0].Value)
	}

	c.Add(5)
	c.PreSerialize(now)
	w2 := &recordingWriter{}
	c.Serialize(w2, now)
	if w2.readings[0].Value != 15 {
		t.Fatalf("second snapshot = %v, want 15 (absolute, not delta)", w2.readings[0].Value)
	}
}
