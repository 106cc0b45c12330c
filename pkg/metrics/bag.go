// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import "sync/atomic"

// segmentCapacity bounds how many entries a single bag segment holds before
// a fresh segment is rotated in. Chosen to keep a typical snapshot window's
// worth of EventGauge/AggregateGauge samples in one or two segments.
const segmentCapacity = 256

// segment is one fixed-capacity link in a bag's append-only chain. Once
// linked via prev, a segment's prev pointer never changes; only its own
// len/data are written to (by concurrent appenders racing for a slot).
//
// This is the "append-only segment list" from spec §9's re-architecture
// note, modeled directly on pkg/metricstore/buffer.go's buffer chain: new
// segments become the new head, the old head is reachable via prev, and a
// PreSerialize-time atomic swap of the head pointer yields a consistent,
// lock-free snapshot for the single collector goroutine to walk.
type segment[T any] struct {
	data []T
	len  atomic.Int32
	prev *segment[T]
}

func newSegment[T any](prev *segment[T]) *segment[T] {
	return &segment[T]{data: make([]T, segmentCapacity), prev: prev}
}

// bag is a concurrent, append-only, multi-producer/single-consumer
// collection. Producers call append from any number of goroutines; exactly
// one consumer goroutine calls swap, which atomically detaches the current
// chain and installs a fresh empty head for the next window.
type bag[T any] struct {
	head atomic.Pointer[segment[T]]
}

func newBag[T any]() *bag[T] {
	b := &bag[T]{}
	b.head.Store(newSegment[T](nil))
	return b
}

// append adds v to the bag. Lock-free: each writer reserves a slot via
// atomic increment of the segment's length; a writer that overflows the
// current segment's capacity races to install a new head segment, and
// retries against whatever segment ends up current.
func (b *bag[T]) append(v T) {
	for {
		seg := b.head.Load()
		idx := seg.len.Add(1) - 1
		if int(idx) < len(seg.data) {
			seg.data[idx] = v
			return
		}

		newSeg := newSegment(seg)
		b.head.CompareAndSwap(seg, newSeg)
		// Whether this goroutine won the race or not, retry against the
		// now-current head.
	}
}

// swap atomically replaces the bag's head with a fresh empty segment and
// returns the detached chain's newest segment (callers walk ".prev" to reach
// older entries, oldest last).
func (b *bag[T]) swap() *segment[T] {
	fresh := newSegment[T](nil)
	return b.head.Swap(fresh)
}

// collect walks a detached chain (as returned by swap) and returns its
// entries in FIFO arrival order (oldest first).
func collect[T any](newest *segment[T]) []T {
	var chain []*segment[T]
	for s := newest; s != nil; s = s.prev {
		chain = append(chain, s)
	}

	var out []T
	for i := len(chain) - 1; i >= 0; i-- {
		s := chain[i]
		n := int(s.len.Load())
		if n > len(s.data) {
			n = len(s.data)
		}
		out = append(out, s.data[:n]...)
	}
	return out
}
