// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/gops/agent"
)

// Options configures a MetricsCollector. Only Endpoints is required; every
// other field has a documented default applied by NewCollector.
// ThrowOnQueueFull, MaxPayloadSize and MaxPayloadCount are not passed on to
// the endpoints: each endpoint's PayloadQueue keeps the arguments it was
// built with. DelayBetweenRetries is copied onto endpoints that have none,
// but MetricEndpoint.Flush does not wait on it: a failed payload is retried
// on the next snapshot cycle.
type Options struct {
	Endpoints []*MetricEndpoint

	DefaultTags      TagSet
	MetricsNamePrefix string
	NameTransformer  NameTransformer

	SnapshotInterval time.Duration
	MetadataInterval time.Duration

	ThrowOnQueueFull bool

	MaxPayloadSize      int
	MaxPayloadCount     int
	MaxRetries          int
	DelayBetweenRetries time.Duration

	ShutdownGracePeriod time.Duration

	ExceptionHandler ExceptionFunc
	AfterSendHandler AfterSendFunc

	// EnableGopsAgent starts a github.com/google/gops/agent listener
	// alongside the collector, for attaching `gops` to inspect goroutines,
	// memory stats and a live profile of the host process. Off by default;
	// runtime overhead when disabled is zero.
	EnableGopsAgent bool
}

const (
	defaultSnapshotInterval    = 10 * time.Second
	defaultMetadataInterval    = 5 * time.Minute
	defaultMaxPayloadSize      = 32 * 1024
	defaultMaxPayloadCount     = 1000
	defaultMaxRetries          = 3
	defaultDelayBetweenRetries = 2 * time.Second
	defaultShutdownGrace       = 5 * time.Second
)

func (o *Options) setDefaults() {
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = defaultSnapshotInterval
	}
	if o.MetadataInterval <= 0 {
		o.MetadataInterval = defaultMetadataInterval
	}
	if o.MaxPayloadSize <= 0 {
		o.MaxPayloadSize = defaultMaxPayloadSize
	}
	if o.MaxPayloadCount <= 0 {
		o.MaxPayloadCount = defaultMaxPayloadCount
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.DelayBetweenRetries <= 0 {
		o.DelayBetweenRetries = defaultDelayBetweenRetries
	}
	if o.ShutdownGracePeriod <= 0 {
		o.ShutdownGracePeriod = defaultShutdownGrace
	}
	if o.NameTransformer == nil {
		o.NameTransformer = DefaultNameTransformer
	}
}

type collectorState int32

const (
	collectorRunning collectorState = iota
	collectorDraining
	collectorClosed
)

// MetricsCollector is the library's top-level entry point: applications
// register metrics against it, and it drives a gocron-scheduled snapshot
// loop (PreSerialize every registered metric, then Serialize+Flush per
// endpoint) plus a metadata push loop, on the intervals configured by
// Options.
type MetricsCollector struct {
	opts     Options
	registry *Registry
	sched    gocron.Scheduler

	state atomic.Int32
	mu    sync.Mutex // guards scheduler Start/Shutdown transitions
}

// NewCollector constructs a collector and starts its snapshot and metadata
// loops. Callers should call Shutdown exactly once when done.
func NewCollector(opts Options) (*MetricsCollector, error) {
	opts.setDefaults()

	if opts.EnableGopsAgent {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Warnf("[METRICS]> gops/agent.Listen failed: %s", err.Error())
		}
	}

	for _, ep := range opts.Endpoints {
		if ep.MaxRetries == 0 {
			ep.MaxRetries = opts.MaxRetries
		}
		if ep.DelayBetweenRetries == 0 {
			ep.DelayBetweenRetries = opts.DelayBetweenRetries
		}
		if ep.AfterSend == nil {
			ep.AfterSend = opts.AfterSendHandler
		}
		if ep.OnError == nil {
			ep.OnError = opts.ExceptionHandler
		}
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	c := &MetricsCollector{
		opts:     opts,
		registry: newRegistry(opts.DefaultTags, opts.NameTransformer, opts.MetricsNamePrefix),
		sched:    sched,
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(opts.SnapshotInterval),
		gocron.NewTask(c.runSnapshot),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(opts.MetadataInterval),
		gocron.NewTask(c.runMetadata),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return c, nil
}

func (c *MetricsCollector) reportException(endpoint string, err error) {
	if err == nil {
		return
	}
	cclog.Warnf("[METRICS]> endpoint %s: %s", endpoint, err.Error())
	if c.opts.ExceptionHandler != nil {
		c.opts.ExceptionHandler(endpoint, err)
	}
}

// runSnapshot is invoked by gocron on SnapshotInterval. The job is registered
// in gocron's singleton mode, so gocron does not run it concurrently with
// itself and at most one snapshot is ever in flight;
// this is what guarantees a single in-flight flush per endpoint without any
// additional locking in MetricEndpoint.Flush.
func (c *MetricsCollector) runSnapshot() {
	if collectorState(c.state.Load()) == collectorClosed {
		return
	}

	now := time.Now()
	metrics := c.registry.snapshot()
	sort.Slice(metrics, func(i, j int) bool {
		ki, kj := metrics[i].Key(), metrics[j].Key()
		if ki.FullName != kj.FullName {
			return ki.FullName < kj.FullName
		}
		return ki.CanonicalTag < kj.CanonicalTag
	})

	for _, m := range metrics {
		m.PreSerialize(now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.SnapshotInterval)
	defer cancel()

	for _, ep := range c.opts.Endpoints {
		ep.Handler.BeginBatch()
		w := ep.Handler.CreateWriter()

		for _, m := range metrics {
			if err := m.Serialize(w, now); err != nil {
				c.reportException(ep.Name, err)
			}
		}

		if f, ok := w.(interface{ Finish() }); ok {
			f.Finish()
		}

		if err := ep.Flush(ctx); err != nil {
			c.reportException(ep.Name, err)
		}
	}
}

func (c *MetricsCollector) runMetadata() {
	if collectorState(c.state.Load()) == collectorClosed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.MetadataInterval)
	defer cancel()

	defs := c.allDefinitions()
	for _, ep := range c.opts.Endpoints {
		if err := ep.Handler.SerializeMetadata(ctx, defs); err != nil {
			c.reportException(ep.Name, err)
		}
	}
}

// EndpointStats is a point-in-time health snapshot of one configured
// endpoint, part of CollectorStats.
type EndpointStats struct {
	Name         string
	QueueDepth   int
	LastFlushErr error
}

// CollectorStats is a point-in-time snapshot of the collector's health, for
// host applications that want to expose their own health endpoint without
// scraping SelfMetrics.
type CollectorStats struct {
	RegisteredMetrics int
	Endpoints         []EndpointStats
}

// Stats reports how many metrics are currently registered and, for each
// endpoint, its queue depth and the outcome of its most recent flush.
func (c *MetricsCollector) Stats() CollectorStats {
	eps := make([]EndpointStats, 0, len(c.opts.Endpoints))
	for _, ep := range c.opts.Endpoints {
		eps = append(eps, EndpointStats{
			Name:         ep.Name,
			QueueDepth:   ep.Queue.Depth(),
			LastFlushErr: ep.LastFlushErr(),
		})
	}
	return CollectorStats{
		RegisteredMetrics: len(c.registry.snapshot()),
		Endpoints:         eps,
	}
}

func (c *MetricsCollector) allDefinitions() []MetricDefinition {
	metrics := c.registry.snapshot()
	seen := make(map[string]bool, len(metrics))
	out := make([]MetricDefinition, 0, len(metrics))
	for _, m := range metrics {
		d := m.Definition()
		if seen[d.FullName] {
			continue
		}
		seen[d.FullName] = true
		out = append(out, d)
	}
	return out
}

// Shutdown stops the scheduler, runs one final best-effort snapshot+flush of
// every endpoint, and disposes each Handler. If the final flush doesn't
// complete within ShutdownGracePeriod, Shutdown returns ErrShutdownAborted
// but still disposes every handler.
func (c *MetricsCollector) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.CompareAndSwap(int32(collectorRunning), int32(collectorDraining)) {
		return nil
	}

	_ = c.sched.Shutdown()

	done := make(chan struct{})
	go func() {
		c.runSnapshot()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(c.opts.ShutdownGracePeriod):
		err = ErrShutdownAborted
	}

	for _, ep := range c.opts.Endpoints {
		ep.Close()
	}

	c.state.Store(int32(collectorClosed))
	return err
}

// --- typed constructors -----------------------------------------------------

func (c *MetricsCollector) GetCounter(name string, unit, description string, tags ...string) (*Counter, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeCounter, RateKind: RateCounter}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newCounter(k, d)
	})
	if err != nil {
		return nil, err
	}
	return m.(*Counter), nil
}

func (c *MetricsCollector) GetCumulativeCounter(name string, unit, description string, tags ...string) (*CumulativeCounter, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeCumulativeCounter, RateKind: RateCumulativeCounter}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newCumulativeCounter(k, d)
	})
	if err != nil {
		return nil, err
	}
	return m.(*CumulativeCounter), nil
}

func (c *MetricsCollector) GetSamplingGauge(name string, unit, description string, tags ...string) (*SamplingGauge, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeGauge, RateKind: RateGauge}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newSamplingGauge(k, d)
	})
	if err != nil {
		return nil, err
	}
	return m.(*SamplingGauge), nil
}

func (c *MetricsCollector) GetEventGauge(name string, unit, description string, tags ...string) (*EventGauge, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeGauge, RateKind: RateGauge}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newEventGauge(k, d)
	})
	if err != nil {
		return nil, err
	}
	return m.(*EventGauge), nil
}

func (c *MetricsCollector) GetAggregateGauge(name string, unit, description string, aggregates []Aggregate, tags ...string) (*AggregateGauge, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeGauge, RateKind: RateGauge}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newAggregateGauge(k, d, aggregates)
	})
	if err != nil {
		return nil, err
	}
	return m.(*AggregateGauge), nil
}

func (c *MetricsCollector) GetSnapshotCounter(name string, unit, description string, produce CounterProducer, tags ...string) (*SnapshotCounter, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeCumulativeCounter, RateKind: RateCumulativeCounter}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newSnapshotCounter(k, d, produce)
	})
	if err != nil {
		return nil, err
	}
	return m.(*SnapshotCounter), nil
}

func (c *MetricsCollector) GetSnapshotGauge(name string, unit, description string, produce GaugeProducer, tags ...string) (*SnapshotGauge, error) {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeGauge, RateKind: RateGauge}
	m, err := c.registry.register(name, tagsFromPairs(tags), def, func(k MetricKey, d MetricDefinition) Metric {
		return newSnapshotGauge(k, d, produce)
	})
	if err != nil {
		return nil, err
	}
	return m.(*SnapshotGauge), nil
}

// NewCounterGroup creates a MetricGroup of Counters sharing name/unit/
// description and differing by the values supplied to Add for tagKeys.
func NewCounterGroup(c *MetricsCollector, name, unit, description string, tagKeys ...string) *MetricGroup[*Counter] {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeCounter, RateKind: RateCounter}
	return newMetricGroup(c.registry, name, def, tagKeys, func(k MetricKey, d MetricDefinition) *Counter {
		return newCounter(k, d)
	})
}

// NewSamplingGaugeGroup mirrors NewCounterGroup for SamplingGauge members.
func NewSamplingGaugeGroup(c *MetricsCollector, name, unit, description string, tagKeys ...string) *MetricGroup[*SamplingGauge] {
	def := MetricDefinition{Unit: unit, Description: description, MetricType: TypeGauge, RateKind: RateGauge}
	return newMetricGroup(c.registry, name, def, tagKeys, func(k MetricKey, d MetricDefinition) *SamplingGauge {
		return newSamplingGauge(k, d)
	})
}

func tagsFromPairs(kv []string) TagSet {
	if len(kv) == 0 {
		return nil
	}
	return NewTagSet(kv...)
}
