// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// AggregateKind selects one derived statistic an AggregateGauge computes over
// a snapshot window's buffered samples.
type AggregateKind int

const (
	AggLast AggregateKind = iota
	AggCount
	AggMean
	AggMedian
	AggPercentile
	AggMin
	AggMax
	AggSum
)

// Aggregate pairs a kind with its parameter (only meaningful for
// AggPercentile, where Percentile must be in (0, 1)).
type Aggregate struct {
	Kind       AggregateKind
	Percentile float64
}

func AggregateLast() Aggregate   { return Aggregate{Kind: AggLast} }
func AggregateCount() Aggregate  { return Aggregate{Kind: AggCount} }
func AggregateMean() Aggregate   { return Aggregate{Kind: AggMean} }
func AggregateMedian() Aggregate { return Aggregate{Kind: AggMedian} }
func AggregateMin() Aggregate    { return Aggregate{Kind: AggMin} }
func AggregateMax() Aggregate    { return Aggregate{Kind: AggMax} }
func AggregateSum() Aggregate    { return Aggregate{Kind: AggSum} }

// AggregatePercentile returns the aggregate for the nearest-rank percentile p
// (0 < p < 1), e.g. AggregatePercentile(0.99) emits a reading with suffix "_99".
func AggregatePercentile(p float64) Aggregate {
	return Aggregate{Kind: AggPercentile, Percentile: p}
}

func (a Aggregate) suffix() string {
	switch a.Kind {
	case AggLast:
		return ""
	case AggCount:
		return "_count"
	case AggMean:
		return "_avg"
	case AggMedian:
		return "_median"
	case AggMin:
		return "_min"
	case AggMax:
		return "_max"
	case AggSum:
		return "_sum"
	case AggPercentile:
		return fmt.Sprintf("_%d", int(a.Percentile*100))
	default:
		return ""
	}
}

// nearestRank implements the nearest-rank percentile method pinned by spec
// §4.2/§9: index = ceil(p*n) - 1, clamped to [0, n-1]. sorted must already be
// sorted ascending and non-empty.
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// AggregateGauge buffers values recorded in a snapshot window and, at
// PreSerialize time, computes each configured Aggregate over the sorted
// snapshot. A window with zero samples emits nothing for any aggregate.
type AggregateGauge struct {
	base
	aggregates []Aggregate
	bag        *bag[float64]
	pending    []MetricReading
}

func newAggregateGauge(key MetricKey, def MetricDefinition, aggregates []Aggregate) *AggregateGauge {
	return &AggregateGauge{base: newBase(key, def), aggregates: aggregates, bag: newBag[float64]()}
}

// Record appends value to this window's buffered samples.
func (g *AggregateGauge) Record(value float64) error {
	if !g.isAttached() {
		return ErrNotAttached
	}
	g.bag.append(value)
	return nil
}

func (g *AggregateGauge) PreSerialize(now time.Time) {
	samples := collect(g.bag.swap())
	g.pending = g.pending[:0]
	if len(samples) == 0 {
		return
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	for _, agg := range g.aggregates {
		var value float64
		switch agg.Kind {
		case AggLast:
			value = samples[len(samples)-1]
		case AggCount:
			value = float64(len(samples))
		case AggMean:
			sum := 0.0
			for _, v := range samples {
				sum += v
			}
			value = sum / float64(len(samples))
		case AggMedian:
			value = nearestRank(sorted, 0.5)
		case AggPercentile:
			value = nearestRank(sorted, agg.Percentile)
		case AggMin:
			value = sorted[0]
		case AggMax:
			value = sorted[len(sorted)-1]
		case AggSum:
			sum := 0.0
			for _, v := range samples {
				sum += v
			}
			value = sum
		default:
			continue
		}

		g.pending = append(g.pending, MetricReading{
			Name:           g.key.FullName,
			Suffix:         agg.suffix(),
			Type:           TypeGauge,
			Value:          value,
			TagsSerialized: g.key.CanonicalTag,
			Timestamp:      now,
		})
	}
}

func (g *AggregateGauge) Serialize(w Writer, now time.Time) error {
	for _, r := range g.pending {
		if err := w.WriteReading(r); err != nil {
			return err
		}
	}
	return nil
}
