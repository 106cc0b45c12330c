// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package datadog implements a metrics.Handler sending readings to the
// DataDog v2 series intake API (POST /api/v2/series), authenticated with the
// DD-API-KEY header, with metadata pushed to the v1 metrics metadata API.
package datadog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics/endpoints/httpbase"
)

// ddType mirrors DataDog's v2 series metric_type enum.
type ddType int

const (
	ddUnspecified ddType = 0
	ddCount       ddType = 1
	ddRate        ddType = 2
	ddGauge       ddType = 3
)

func typeFor(t metrics.MetricType) ddType {
	switch t {
	case metrics.TypeCounter:
		return ddCount
	case metrics.TypeCumulativeCounter:
		return ddRate
	default:
		return ddGauge
	}
}

type point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type series struct {
	Metric string   `json:"metric"`
	Type   ddType   `json:"type"`
	Points []point  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

type framer struct{}

func (framer) Open() []byte      { return []byte(`{"series":[`) }
func (framer) Close() []byte     { return []byte(`]}`) }
func (framer) Separator() []byte { return []byte(",") }

func (framer) Encode(r metrics.MetricReading, _ string) ([]byte, error) {
	return json.Marshal(series{
		Metric: r.FullName(),
		Type:   typeFor(r.Type),
		Points: []point{{Timestamp: r.Timestamp.Unix(), Value: r.Value}},
		Tags:   tagsToColonList(r.TagsSerialized),
	})
}

func tagsToColonList(tagsJSON string) []string {
	if tagsJSON == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(tagsJSON), &m); err != nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+":"+v)
	}
	return out
}

type metadataEntry struct {
	Metric      string `json:"metric,omitempty"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Handler sends payloads to the DataDog HTTP intake API.
type Handler struct {
	metrics.HandlerBase
	client *httpbase.Client
	url    string
	apiKey string
}

// New constructs a datadog Handler posting to url (typically
// "https://api.datadoghq.com") with apiKey sent as the DD-API-KEY header.
func New(url, apiKey string, queue *metrics.PayloadQueue, client *httpbase.Client) *Handler {
	h := &Handler{client: client, url: url, apiKey: apiKey}
	h.HandlerBase = metrics.HandlerBase{Queue: queue, Framer: framer{}}
	return h
}

func (h *Handler) headers() map[string]string {
	return map[string]string{"DD-API-KEY": h.apiKey}
}

func (h *Handler) Flush(ctx context.Context, payloads []*metrics.Payload) error {
	for _, p := range payloads {
		if p.N == 0 {
			continue
		}
		if _, err := h.client.Post(ctx, h.url+"/api/v2/series", "application/json", p.Bytes(), h.headers()); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) SerializeMetadata(ctx context.Context, defs []metrics.MetricDefinition) error {
	for _, d := range defs {
		body, err := json.Marshal(struct {
			Metadata metadataEntry `json:"metadata"`
		}{Metadata: metadataEntry{
			Description: d.Description,
			Unit:        d.Unit,
			Type:        d.RateKind.String(),
		}})
		if err != nil {
			return fmt.Errorf("%w: %s", metrics.ErrTransportFatal, err.Error())
		}

		url := fmt.Sprintf("%s/api/v1/metrics/%s", h.url, d.FullName)
		if _, err := h.client.Post(ctx, url, "application/json", body, h.headers()); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) Dispose() {
	h.client.HTTP.CloseIdleConnections()
}
