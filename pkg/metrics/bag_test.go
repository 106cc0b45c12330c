// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"sync"
	"testing"
)

func TestBagCollectPreservesFIFOOrder(t *testing.T) {
	b := newBag[int]()
	for i := 0; i < 10; i++ {
		b.append(i)
	}

	got := collect(b.swap())
	if len(got) != 10 {
		t.Fatalf("collected %d items, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestBagSwapIsolatesWindows(t *testing.T) {
	b := newBag[int]()
	b.append(1)
	first := collect(b.swap())
	if len(first) != 1 {
		t.Fatalf("first window = %v, want 1 item", first)
	}

	second := collect(b.swap())
	if len(second) != 0 {
		t.Fatalf("second window = %v, want 0 items", second)
	}
}

func TestBagSurvivesSegmentRotationUnderConcurrency(t *testing.T) {
	b := newBag[int]()
	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.append(i)
			}
		}()
	}
	wg.Wait()

	got := collect(b.swap())
	if len(got) != writers*perWriter {
		t.Fatalf("collected %d items, want %d", len(got), writers*perWriter)
	}
}
