// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"sync"
)

// MetricGroup is a named family of metrics sharing a definition and a tuple
// of tag keys, differing only in tag values. Add constructs (or returns the
// already-registered) member for a given tuple of tag values, so callers
// tracking e.g. "requests per endpoint" can hold one MetricGroup and call
// group.Add(endpoint) instead of managing GetMetric calls by hand.
type MetricGroup[M Metric] struct {
	mu       sync.Mutex
	registry *Registry
	name     string
	def      MetricDefinition
	tagKeys  []string
	construct func(key MetricKey, def MetricDefinition) M
	members  map[string]M
}

func newMetricGroup[M Metric](
	registry *Registry,
	name string,
	def MetricDefinition,
	tagKeys []string,
	construct func(key MetricKey, def MetricDefinition) M,
) *MetricGroup[M] {
	return &MetricGroup[M]{
		registry:  registry,
		name:      name,
		def:       def,
		tagKeys:   tagKeys,
		construct: construct,
		members:   make(map[string]M),
	}
}

// Add returns the group member for tagValues (in the same order as the
// group's tag keys), constructing and registering it on first use. Members
// are deduped both locally (by the declared tag values' string form) and, as
// with every metric, by the registry's canonical MetricKey -- two groups
// that happen to declare the same name and tags resolve to the same Metric.
func (g *MetricGroup[M]) Add(tagValues ...string) (M, error) {
	var zero M
	if len(tagValues) != len(g.tagKeys) {
		return zero, fmt.Errorf("%w: group %q expects %d tag values, got %d",
			ErrInvalidTag, g.name, len(g.tagKeys), len(tagValues))
	}

	declared := make(TagSet, len(g.tagKeys))
	localKey := ""
	for i, k := range g.tagKeys {
		declared[i] = Tag{Key: k, Value: tagValues[i]}
		localKey += k + "=" + tagValues[i] + ";"
	}

	g.mu.Lock()
	if existing, ok := g.members[localKey]; ok {
		g.mu.Unlock()
		return existing, nil
	}
	g.mu.Unlock()

	m, err := g.registry.register(g.name, declared, g.def, func(key MetricKey, def MetricDefinition) Metric {
		return g.construct(key, def)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := m.(M)
	if !ok {
		return zero, ErrTypeMismatch
	}

	g.mu.Lock()
	g.members[localKey] = typed
	g.mu.Unlock()

	return typed, nil
}

// Members returns a snapshot of every member constructed so far.
func (g *MetricGroup[M]) Members() []M {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]M, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m)
	}
	return out
}
