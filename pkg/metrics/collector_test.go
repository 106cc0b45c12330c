// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics/endpoints/local"
)

func TestCollectorSnapshotReachesLocalEndpoint(t *testing.T) {
	sink := local.New()
	ep := local.NewEndpoint("local")
	// Swap in the already-constructed sink so the test can read it back.
	ep.Handler = sink

	c, err := NewCollector(Options{Endpoints: []*MetricEndpoint{ep}})
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	defer c.Shutdown()

	counter, err := c.GetCounter("requests", "requests", "total requests handled")
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	counter.Add(3)

	c.runSnapshot()

	readings := sink.Snapshot()
	r, ok := readings["requests"]
	if !ok {
		t.Fatalf("local sink has no reading for 'requests': %+v", readings)
	}
	if r.Value != 3 {
		t.Fatalf("reading value = %v, want 3", r.Value)
	}

	// A second snapshot with no new activity reports a zero delta, not the
	// stale previous value.
	c.runSnapshot()
	readings = sink.Snapshot()
	if readings["requests"].Value != 0 {
		t.Fatalf("second snapshot value = %v, want 0", readings["requests"].Value)
	}
}

func TestCollectorSnapshotForwardsCanonicalTags(t *testing.T) {
	sink := local.New()
	ep := local.NewEndpoint("local")
	ep.Handler = sink

	c, err := NewCollector(Options{Endpoints: []*MetricEndpoint{ep}})
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	defer c.Shutdown()

	counter, err := c.GetCounter("requests", "requests", "total requests handled", "route", "/a")
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	counter.Add(1)

	c.runSnapshot()

	r, ok := sink.Snapshot()["requests"]
	if !ok {
		t.Fatal("local sink has no reading for 'requests'")
	}
	if r.TagsSerialized == "" {
		t.Fatal("reading reached the endpoint with no tags -- MetricKey.CanonicalTag was not forwarded")
	}
}

func TestCollectorStatsReportsRegisteredMetricsAndQueueDepth(t *testing.T) {
	ep := local.NewEndpoint("local")
	c, err := NewCollector(Options{Endpoints: []*MetricEndpoint{ep}})
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	defer c.Shutdown()

	if _, err := c.GetCounter("requests", "requests", "total requests handled"); err != nil {
		t.Fatalf("GetCounter: %v", err)
	}

	stats := c.Stats()
	if stats.RegisteredMetrics != 1 {
		t.Fatalf("RegisteredMetrics = %d, want 1", stats.RegisteredMetrics)
	}
	if len(stats.Endpoints) != 1 || stats.Endpoints[0].Name != "local" {
		t.Fatalf("Endpoints = %+v, want one entry named 'local'", stats.Endpoints)
	}
}

func TestCollectorGetMetricIsIdempotentAcrossCalls(t *testing.T) {
	ep := local.NewEndpoint("local")
	c, err := NewCollector(Options{Endpoints: []*MetricEndpoint{ep}})
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	defer c.Shutdown()

	a, err := c.GetCounter("jobs", "jobs", "jobs submitted")
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	b, err := c.GetCounter("jobs", "jobs", "jobs submitted")
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	if a != b {
		t.Fatal("GetCounter called twice with the same name should return the same metric")
	}
}
