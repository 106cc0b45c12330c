// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"fmt"
	"testing"
)

// fakeHandler returns a scripted sequence of errors, one per call to Flush,
// and counts how many times Flush was invoked.
type fakeHandler struct {
	results    []error
	flushCalls int
}

func (h *fakeHandler) CreateWriter() Writer { return nil }
func (h *fakeHandler) BeginBatch()          {}
func (h *fakeHandler) Dispose()             {}

func (h *fakeHandler) SerializeMetadata(context.Context, []MetricDefinition) error { return nil }

func (h *fakeHandler) Flush(ctx context.Context, payloads []*Payload) error {
	i := h.flushCalls
	h.flushCalls++
	if i < len(h.results) {
		return h.results[i]
	}
	return nil
}

func TestFlushAttemptsOnceNotARetryLoop(t *testing.T) {
	h := &fakeHandler{results: []error{
		fmt.Errorf("%w: down", ErrTransportTransient),
		fmt.Errorf("%w: still down", ErrTransportTransient),
		nil,
	}}
	queue := NewPayloadQueue(4096, 10, false)
	ep := NewMetricEndpoint("test", h, queue, 5, 0)

	var afterSendCalls int
	ep.AfterSend = func(endpoint string, n int, err error) { afterSendCalls++ }

	p := queue.GetFree()
	p.N = 1
	queue.AddPending(p)

	// First snapshot tick: transient failure, payload goes back to retry.
	if err := ep.Flush(t.Context()); err == nil {
		t.Fatal("expected transient error from first Flush")
	}
	if h.flushCalls != 1 {
		t.Fatalf("Handler.Flush called %d times after one tick, want 1", h.flushCalls)
	}
	if afterSendCalls != 1 {
		t.Fatalf("AfterSend called %d times after one tick, want 1", afterSendCalls)
	}
	if queue.Depth() != 1 {
		t.Fatalf("Depth() = %d after failed tick, want 1 (payload requeued)", queue.Depth())
	}

	// Second snapshot tick: transient failure again.
	if err := ep.Flush(t.Context()); err == nil {
		t.Fatal("expected transient error from second Flush")
	}
	if h.flushCalls != 2 {
		t.Fatalf("Handler.Flush called %d times after two ticks, want 2", h.flushCalls)
	}
	if afterSendCalls != 2 {
		t.Fatalf("AfterSend called %d times after two ticks, want 2", afterSendCalls)
	}

	// Third snapshot tick: succeeds.
	if err := ep.Flush(t.Context()); err != nil {
		t.Fatalf("third Flush: %v", err)
	}
	if afterSendCalls != 3 {
		t.Fatalf("AfterSend called %d times after three ticks, want 3", afterSendCalls)
	}
	if queue.Depth() != 0 {
		t.Fatalf("Depth() = %d after successful tick, want 0", queue.Depth())
	}
}

func TestFlushDropsPayloadAfterMaxRetriesExhausted(t *testing.T) {
	h := &fakeHandler{results: []error{
		fmt.Errorf("%w: 1", ErrTransportTransient),
		fmt.Errorf("%w: 2", ErrTransportTransient),
	}}
	queue := NewPayloadQueue(4096, 10, false)
	ep := NewMetricEndpoint("test", h, queue, 2, 0)

	p := queue.GetFree()
	p.N = 1
	queue.AddPending(p)

	ep.Flush(t.Context())
	if queue.Depth() != 1 {
		t.Fatalf("Depth() = %d after first failed attempt, want 1", queue.Depth())
	}

	ep.Flush(t.Context())
	if queue.Depth() != 0 {
		t.Fatalf("Depth() = %d after MaxRetries exhausted, want 0 (payload dropped)", queue.Depth())
	}
}

func TestFlushReleasesImmediatelyOnFatalError(t *testing.T) {
	h := &fakeHandler{results: []error{
		fmt.Errorf("%w: bad request", ErrTransportFatal),
	}}
	queue := NewPayloadQueue(4096, 10, false)
	ep := NewMetricEndpoint("test", h, queue, 5, 0)

	p := queue.GetFree()
	p.N = 1
	queue.AddPending(p)

	if err := ep.Flush(t.Context()); err == nil {
		t.Fatal("expected fatal error")
	}
	if queue.Depth() != 0 {
		t.Fatalf("Depth() = %d after fatal error, want 0 (not retried)", queue.Depth())
	}
}
