// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"strings"
	"testing"
)

func TestSelfMetricsObserveReflectsQueueDepth(t *testing.T) {
	queue := NewPayloadQueue(4096, 10, false)
	ep := NewMetricEndpoint("test-endpoint", nil, queue, 0, 0)

	sm := NewSelfMetrics()
	sm.Attach([]*MetricEndpoint{ep})

	p := queue.GetFree()
	p.N = copy(p.Buf, []byte("x"))
	queue.AddPending(p)

	sm.Observe([]*MetricEndpoint{ep})

	body := scrapeMetrics(t, sm)
	if !strings.Contains(body, `cc_metrics_client_queue_depth{endpoint="test-endpoint"} 1`) {
		t.Fatalf("expected queue depth of 1 for test-endpoint, got:\n%s", body)
	}
}

func TestSelfMetricsDropHandlerIncrementsCounter(t *testing.T) {
	queue := NewPayloadQueue(1, 1, false)
	ep := NewMetricEndpoint("full-endpoint", nil, queue, 0, 0)

	sm := NewSelfMetrics()
	sm.Attach([]*MetricEndpoint{ep})

	// With maxPayloadCount=1 and the only buffer already pending, the second
	// GetFree steals that oldest pending payload, invoking the drop handler
	// sm.Attach installed.
	p1 := queue.GetFree()
	p1.N = 1
	queue.AddPending(p1)

	p2 := queue.GetFree()
	p2.N = 1
	queue.AddPending(p2)

	body := scrapeMetrics(t, sm)
	if !strings.Contains(body, `cc_metrics_client_dropped_payloads_total{endpoint="full-endpoint"} 1`) {
		t.Fatalf("expected one dropped payload for full-endpoint, got:\n%s", body)
	}
}

func scrapeMetrics(t *testing.T, sm *SelfMetrics) string {
	t.Helper()
	mfs, err := sm.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var b strings.Builder
	for _, mf := range mfs {
		for _, m := range mf.Metric {
			b.WriteString(mf.GetName())
			b.WriteString("{")
			for i, lp := range m.Label {
				if i > 0 {
					b.WriteString(",")
				}
				b.WriteString(lp.GetName())
				b.WriteString(`="`)
				b.WriteString(lp.GetValue())
				b.WriteString(`"`)
			}
			b.WriteString("} ")
			switch {
			case m.Counter != nil:
				b.WriteString(formatFloat(m.Counter.GetValue()))
			case m.Gauge != nil:
				b.WriteString(formatFloat(m.Gauge.GetValue()))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
