// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"sort"
	"sync"
)

// Payload is one reusable wire buffer. Buf is sized to an endpoint's
// max-payload-size at allocation time and never grows; N is the number of
// bytes currently written. seq orders payloads for the queue's drop-from-head
// policy: lower seq is older. attempts counts how many times this payload has
// been handed back via Retry; once it reaches an endpoint's max-retries it is
// released to the free pool instead of being retried again.
type Payload struct {
	Buf      []byte
	N        int
	seq      uint64
	attempts int
}

func (p *Payload) reset() { p.N = 0; p.attempts = 0 }

// Bytes returns the portion of Buf written so far.
func (p *Payload) Bytes() []byte { return p.Buf[:p.N] }

// Remaining returns how many bytes are still free in Buf.
func (p *Payload) Remaining() int { return len(p.Buf) - p.N }

// PayloadQueue holds a pool of free payload buffers plus the pending and
// retry lists awaiting a flush. It enforces maxPayloadCount by dropping the
// single oldest payload (by seq, across both pending and retry) each time the
// bound is exceeded -- never the newest, so a burst never evicts data a
// consumer hasn't seen yet in favor of data it has already tried and failed
// to send.
type PayloadQueue struct {
	mu sync.Mutex

	maxPayloadSize   int
	maxPayloadCount  int
	throwOnQueueFull bool

	nextSeq   uint64
	allocated int
	free      []*Payload
	pending   []*Payload
	retry     []*Payload

	onDrop func(n int)
}

func NewPayloadQueue(maxPayloadSize, maxPayloadCount int, throwOnQueueFull bool) *PayloadQueue {
	return &PayloadQueue{
		maxPayloadSize:   maxPayloadSize,
		maxPayloadCount:  maxPayloadCount,
		throwOnQueueFull: throwOnQueueFull,
	}
}

// SetDropHandler installs a callback invoked with the number of payloads
// dropped each time the bound is enforced. Used to drive a self-metrics
// counter; optional.
func (q *PayloadQueue) SetDropHandler(fn func(n int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// GetFree returns a payload from the free pool. If the pool is empty and
// fewer than maxPayloadCount buffers have been allocated in total, it
// allocates a new one; otherwise it drops the oldest queued payload and
// hands back its buffer. Only when every allocated buffer is checked out and
// nothing is queued does it allocate past maxPayloadCount.
func (q *PayloadQueue) GetFree() *Payload {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.free); n > 0 {
		p := q.free[n-1]
		q.free = q.free[:n-1]
		p.reset()
		return p
	}

	if q.allocated < q.maxPayloadCount {
		q.allocated++
		return &Payload{Buf: make([]byte, q.maxPayloadSize)}
	}

	if p := q.dropOldestLocked(); p != nil {
		if q.onDrop != nil {
			q.onDrop(1)
		}
		p.reset()
		return p
	}

	// Every allocated buffer is checked out (being filled by a writer or
	// in flight with a Handler) and there is nothing queued left to steal
	// from. Allocate past the bound rather than block the producer.
	q.allocated++
	return &Payload{Buf: make([]byte, q.maxPayloadSize)}
}

// AddPending enqueues a completed payload for the next flush. Returns
// ErrQueueFull if enqueuing it pushed the queue over its bound and
// throwOnQueueFull is set (the payload is still accepted either way; only
// the oldest payload(s) are ever dropped to make room).
func (q *PayloadQueue) AddPending(p *Payload) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSeq++
	p.seq = q.nextSeq
	q.pending = append(q.pending, p)
	return q.enforceBoundLocked()
}

// Retry re-enqueues a payload that failed to send, for another attempt on a
// later flush. It increments the payload's send-attempts counter; once that
// reaches maxRetries (a value <= 0 disables this check), the payload is
// released to the free pool and recorded as a drop instead of being queued
// again. Otherwise it is subject to the same bound as AddPending.
func (q *PayloadQueue) Retry(p *Payload, maxRetries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p.attempts++
	if maxRetries > 0 && p.attempts >= maxRetries {
		p.reset()
		q.free = append(q.free, p)
		if q.onDrop != nil {
			q.onDrop(1)
		}
		return nil
	}

	q.retry = append(q.retry, p)
	return q.enforceBoundLocked()
}

// MergeRetry normalizes the retry list's ordering by seq. Called defensively
// before a flush in case retries were enqueued out of original send order.
func (q *PayloadQueue) MergeRetry() {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.Slice(q.retry, func(i, j int) bool { return q.retry[i].seq < q.retry[j].seq })
}

// TakeForFlush detaches every payload currently queued (retries first, then
// pending, both oldest-first) for the collector to hand to a Handler. The
// queue's pending/retry lists are empty again until AddPending/Retry are
// called for the next cycle.
func (q *PayloadQueue) TakeForFlush() []*Payload {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Payload, 0, len(q.retry)+len(q.pending))
	out = append(out, q.retry...)
	out = append(out, q.pending...)
	q.retry = nil
	q.pending = nil
	return out
}

// Release returns a successfully sent payload's buffer to the free pool.
func (q *PayloadQueue) Release(p *Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.reset()
	q.free = append(q.free, p)
}

// Depth reports how many payloads are currently pending or awaiting retry,
// for the self-metrics queue-depth gauge.
func (q *PayloadQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.retry)
}

func (q *PayloadQueue) enforceBoundLocked() error {
	total := len(q.pending) + len(q.retry)
	if total <= q.maxPayloadCount {
		return nil
	}

	dropped := 0
	for len(q.pending)+len(q.retry) > q.maxPayloadCount {
		p := q.dropOldestLocked()
		if p == nil {
			break
		}
		q.free = append(q.free, p)
		dropped++
	}

	if dropped > 0 {
		if q.onDrop != nil {
			q.onDrop(dropped)
		}
		if q.throwOnQueueFull {
			return ErrQueueFull
		}
	}
	return nil
}

// dropOldestLocked removes and returns the lowest-seq payload across pending
// and retry. Both lists are append-ordered (ascending seq), so the oldest is
// always one of the two heads.
func (q *PayloadQueue) dropOldestLocked() *Payload {
	switch {
	case len(q.pending) == 0 && len(q.retry) == 0:
		return nil
	case len(q.retry) == 0 || (len(q.pending) > 0 && q.pending[0].seq < q.retry[0].seq):
		p := q.pending[0]
		q.pending = q.pending[1:]
		return p
	default:
		p := q.retry[0]
		q.retry = q.retry[1:]
		return p
	}
}
