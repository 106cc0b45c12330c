// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EndpointConfig describes one entry in CollectorConfig.Endpoints. Handler
// construction from a Kind is left to the application (this package cannot
// import its own endpoint sub-packages without a cycle); CollectorConfig
// only carries the data, not the wiring.
type EndpointConfig struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	APIKey string `json:"api-key"`
	Address string `json:"address"`
}

// CollectorConfig mirrors Options in JSON-friendly form, validated against
// configSchema before being decoded.
type CollectorConfig struct {
	SnapshotInterval    string `json:"snapshot-interval"`
	MetadataInterval    string `json:"metadata-interval"`
	MetricsNamePrefix   string `json:"metrics-name-prefix"`
	DefaultTags         []string `json:"default-tags"`
	ThrowOnQueueFull    bool   `json:"throw-on-queue-full"`
	MaxPayloadSize      int    `json:"max-payload-size"`
	MaxPayloadCount     int    `json:"max-payload-count"`
	MaxRetries          int    `json:"max-retries"`
	DelayBetweenRetries string `json:"delay-between-retries"`
	ShutdownGracePeriod string `json:"shutdown-grace-period"`
	Endpoints           []EndpointConfig `json:"endpoints"`
}

// ValidateConfig checks raw against configSchema, aborting the process (via
// cclog.Fatalf, matching internal/config.Validate's behavior in the teacher)
// if it does not conform.
func ValidateConfig(raw json.RawMessage) {
	sch, err := jsonschema.CompileString("metrics-config.json", configSchema)
	if err != nil {
		cclog.Fatalf("[METRICS]> %#v", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		cclog.Fatalf("[METRICS]> %s", err.Error())
	}

	if err := sch.Validate(v); err != nil {
		cclog.Fatalf("[METRICS]> %#v", err)
	}
}

// DecodeConfig validates raw and decodes it into a CollectorConfig.
func DecodeConfig(raw json.RawMessage) (CollectorConfig, error) {
	ValidateConfig(raw)

	var cfg CollectorConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("[METRICS]> could not decode collector config: %w", err)
	}
	return cfg, nil
}

// ToOptions converts a validated CollectorConfig into Options, leaving
// Endpoints empty: callers build *MetricEndpoint values from cfg.Endpoints
// themselves (each EndpointConfig names a Kind whose concrete Handler lives
// in a separate endpoints/* package) and assign them before calling
// NewCollector.
func (cfg CollectorConfig) ToOptions() (Options, error) {
	opts := Options{
		MetricsNamePrefix: cfg.MetricsNamePrefix,
		ThrowOnQueueFull:  cfg.ThrowOnQueueFull,
		MaxPayloadSize:    cfg.MaxPayloadSize,
		MaxPayloadCount:   cfg.MaxPayloadCount,
		MaxRetries:        cfg.MaxRetries,
	}

	if len(cfg.DefaultTags) > 0 {
		opts.DefaultTags = NewTagSet(cfg.DefaultTags...)
	}

	var err error
	if opts.SnapshotInterval, err = parseOptionalDuration(cfg.SnapshotInterval); err != nil {
		return opts, err
	}
	if opts.MetadataInterval, err = parseOptionalDuration(cfg.MetadataInterval); err != nil {
		return opts, err
	}
	if opts.DelayBetweenRetries, err = parseOptionalDuration(cfg.DelayBetweenRetries); err != nil {
		return opts, err
	}
	if opts.ShutdownGracePeriod, err = parseOptionalDuration(cfg.ShutdownGracePeriod); err != nil {
		return opts, err
	}

	return opts, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		cclog.Warnf("[METRICS]> could not parse duration %q: %s", s, err.Error())
		return 0, fmt.Errorf("[METRICS]> invalid duration %q: %w", s, err)
	}
	return d, nil
}
