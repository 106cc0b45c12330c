// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import "sync"

// Registry is the single source of truth mapping MetricKey to the live
// Metric instances a collector serializes, plus full-name to MetricDefinition
// so that two calls registering the same name are checked for consistency.
//
// A single mutex guards both maps, matching pkg/metricstore's MemoryStore:
// registration is rare (happens during setup/first-use) while the hot path
// (Increment/Record/Add) never touches the registry at all, so contention on
// this lock never shows up on a metric's write path.
type Registry struct {
	mu          sync.RWMutex
	metrics     map[MetricKey]Metric
	definitions map[string]MetricDefinition

	defaultTags TagSet
	transformer NameTransformer
	namePrefix  string
}

func newRegistry(defaultTags TagSet, transformer NameTransformer, namePrefix string) *Registry {
	if transformer == nil {
		transformer = DefaultNameTransformer
	}
	return &Registry{
		metrics:     make(map[MetricKey]Metric),
		definitions: make(map[string]MetricDefinition),
		defaultTags: defaultTags,
		transformer: transformer,
		namePrefix:  namePrefix,
	}
}

// register implements GetMetric's full contract: resolve the canonical tag
// string, check the full name against any existing MetricDefinition, check
// the resulting MetricKey against any existing Metric, and either return the
// existing Metric (if it is identical in shape) or construct and attach a new
// one via construct.
func (r *Registry) register(
	name string,
	declaredTags TagSet,
	def MetricDefinition,
	construct func(key MetricKey, def MetricDefinition) Metric,
) (Metric, error) {
	fullName := r.namePrefix + name
	def.FullName = fullName

	canonical, _, err := canonicalTags(declaredTags, r.defaultTags, r.transformer)
	if err != nil {
		return nil, err
	}
	key := MetricKey{FullName: fullName, CanonicalTag: canonical}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existingDef, ok := r.definitions[fullName]; ok {
		if existingDef.MetricType != def.MetricType {
			return nil, ErrTypeMismatch
		}
		if existingDef.Unit != def.Unit || existingDef.Description != def.Description || existingDef.RateKind != def.RateKind {
			return nil, ErrInconsistentMetadata
		}
	} else {
		r.definitions[fullName] = def
	}

	if existing, ok := r.metrics[key]; ok {
		return existing, nil
	}

	m := construct(key, def)
	attachMetric(m)
	r.metrics[key] = m
	return m, nil
}

// snapshot returns every registered metric in map iteration order, which is
// not stable between calls (registration order is not preserved across a
// map, so the collector sorts by key for deterministic output instead).
func (r *Registry) snapshot() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	return out
}

func (r *Registry) definition(fullName string) (MetricDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[fullName]
	return d, ok
}
