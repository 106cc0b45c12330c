// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"strconv"
	"time"
)

// MetricType distinguishes the three wire-level kinds a reading can carry.
// It is determined by the metric implementation, never by the caller.
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeCumulativeCounter
	TypeGauge
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeCumulativeCounter:
		return "cumulative-counter"
	case TypeGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// RateKind labels a MetricDefinition for metadata purposes. It mirrors
// MetricType except that a plain gauge fed by a SamplingGauge/EventGauge/
// AggregateGauge/SnapshotGauge is always reported as "gauge", never "rate".
type RateKind int

const (
	RateCounter RateKind = iota
	RateRate
	RateGauge
	RateCumulativeCounter
)

func (k RateKind) String() string {
	switch k {
	case RateCounter:
		return "counter"
	case RateRate:
		return "rate"
	case RateGauge:
		return "gauge"
	case RateCumulativeCounter:
		return "cumulative_counter"
	default:
		return "unknown"
	}
}

// minTimestamp / maxTimestamp bound the accepted reading timestamps:
// [2000-01-01T00:00:00Z, 2250-01-01T00:00:00Z], both inclusive.
var (
	minTimestamp = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(2250, 1, 1, 0, 0, 0, 0, time.UTC)
)

// MetricReading is an immutable value object describing a single point
// destined for one endpoint. Suffix distinguishes AggregateGauge's derived
// statistics ("_count", "_avg", ...) and is empty for every other metric type.
type MetricReading struct {
	Name           string
	Suffix         string
	Type           MetricType
	Value          float64
	TagsSerialized string
	Timestamp      time.Time
}

// FullName returns Name+Suffix, the identifier actually written to the wire.
func (r MetricReading) FullName() string {
	if r.Suffix == "" {
		return r.Name
	}
	return r.Name + r.Suffix
}

// UnixMilli returns the reading's timestamp as milliseconds since the epoch.
func (r MetricReading) UnixMilli() int64 {
	return r.Timestamp.UnixMilli()
}

// validateTimestamp enforces the closed interval [2000, 2250] UTC.
func validateTimestamp(t time.Time) error {
	u := t.UTC()
	if u.Before(minTimestamp) || u.After(maxTimestamp) {
		return fmt.Errorf("%w: %s", ErrTimestampOutOfRange, u.Format(time.RFC3339Nano))
	}
	return nil
}

// ValidateTimestamp exposes validateTimestamp's [2000, 2250] UTC bounds check
// for Writer implementations outside this package (endpoints that cannot use
// the shared chunkedWriter, e.g. statsd's one-datagram-per-reading Writer)
// that still need to reject the same out-of-range readings.
func ValidateTimestamp(t time.Time) error {
	return validateTimestamp(t)
}

// formatFloat renders v in the shortest form that round-trips exactly,
// matching what encoding/json itself would produce for a float64.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// MetricDefinition describes a metric's metadata, emitted once per
// metadata-interval to every endpoint. RateKind is derived from the metric's
// concrete type at registration time, never supplied by the caller.
type MetricDefinition struct {
	FullName    string
	Unit        string
	Description string
	MetricType  MetricType
	RateKind    RateKind
}

// rateKindFor maps a MetricType to its default RateKind. AggregateGauge,
// SamplingGauge, EventGauge and SnapshotGauge all report RateGauge;
// CumulativeCounter reports RateCumulativeCounter; Counter reports RateCounter.
func rateKindFor(t MetricType) RateKind {
	switch t {
	case TypeCounter:
		return RateCounter
	case TypeCumulativeCounter:
		return RateCumulativeCounter
	case TypeGauge:
		return RateGauge
	default:
		return RateGauge
	}
}
