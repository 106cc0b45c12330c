// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import "testing"

func fillPayload(q *PayloadQueue, n int) []*Payload {
	out := make([]*Payload, 0, n)
	for i := 0; i < n; i++ {
		p := q.GetFree()
		p.Buf[0] = byte('a' + i)
		p.N = 1
		out = append(out, p)
	}
	return out
}

func TestPayloadQueueDropsOldestOnOverflow(t *testing.T) {
	q := NewPayloadQueue(16, 2, false)
	payloads := fillPayload(q, 3)

	for _, p := range payloads {
		q.AddPending(p)
	}

	if d := q.Depth(); d != 2 {
		t.Fatalf("Depth() = %d, want 2 (oldest dropped to honor max-payload-count)", d)
	}

	flushed := q.TakeForFlush()
	if len(flushed) != 2 {
		t.Fatalf("TakeForFlush returned %d payloads, want 2", len(flushed))
	}
	// The survivors should be the two most recently added (b, c), not (a, b).
	if flushed[0].Buf[0] != 'b' || flushed[1].Buf[0] != 'c' {
		t.Fatalf("dropped the wrong payload: got %c, %c, want b, c", flushed[0].Buf[0], flushed[1].Buf[0])
	}
}

func TestPayloadQueueThrowOnQueueFull(t *testing.T) {
	q := NewPayloadQueue(16, 1, true)
	payloads := fillPayload(q, 2)

	if err := q.AddPending(payloads[0]); err != nil {
		t.Fatalf("first AddPending: %v", err)
	}
	if err := q.AddPending(payloads[1]); err != ErrQueueFull {
		t.Fatalf("second AddPending = %v, want ErrQueueFull", err)
	}
	// The payload is still accepted even though the bound was exceeded --
	// only the oldest is dropped to make room, never the one just added.
	if q.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", q.Depth())
	}
}

func TestPayloadQueueReleaseReturnsToFreePool(t *testing.T) {
	q := NewPayloadQueue(16, 10, false)
	p := q.GetFree()
	p.N = 5
	q.Release(p)

	reused := q.GetFree()
	if reused != p {
		t.Fatal("GetFree should reuse a released payload before allocating")
	}
	if reused.N != 0 {
		t.Fatalf("reused payload N = %d, want 0 (reset on release)", reused.N)
	}
}

func TestGetFreeNeverAllocatesPastMaxPayloadCount(t *testing.T) {
	q := NewPayloadQueue(16, 2, false)

	p1 := q.GetFree()
	p1.N = 1
	q.AddPending(p1)

	p2 := q.GetFree()
	p2.N = 1
	q.AddPending(p2)

	// A third GetFree with both buffers already queued and none free must
	// steal the oldest queued payload instead of allocating a third buffer.
	p3 := q.GetFree()
	if q.allocated != 2 {
		t.Fatalf("allocated = %d after third GetFree, want 2 (bound enforced, not grown)", q.allocated)
	}
	if p3 != p1 {
		t.Fatal("GetFree should have reused the oldest queued payload's buffer")
	}
	if q.Depth() != 1 {
		t.Fatalf("Depth() = %d after GetFree stole the oldest payload, want 1", q.Depth())
	}
}

func TestPayloadQueueRetryParticipatesInBound(t *testing.T) {
	q := NewPayloadQueue(16, 1, false)
	p1 := q.GetFree()
	p1.N = 1
	p2 := q.GetFree()
	p2.N = 1

	q.AddPending(p1)
	q.Retry(p2, 0)

	if q.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1 (retry list counts toward the same bound)", q.Depth())
	}
}
