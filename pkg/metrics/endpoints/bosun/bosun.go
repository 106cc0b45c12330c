// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bosun implements a metrics.Handler sending readings to a Bosun
// (or OpenTSDB-compatible) /api/put endpoint as a JSON array of
// {metric, timestamp, value, tags} points, with metadata pushed separately
// to /api/metadata/put.
package bosun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics/endpoints/httpbase"
)

type point struct {
	Metric    string          `json:"metric"`
	Timestamp int64           `json:"timestamp"`
	Value     float64         `json:"value"`
	Tags      json.RawMessage `json:"tags"`
}

type framer struct{}

func (framer) Open() []byte      { return []byte("[") }
func (framer) Close() []byte     { return []byte("]") }
func (framer) Separator() []byte { return []byte(",") }

func (framer) Encode(r metrics.MetricReading, _ string) ([]byte, error) {
	tags := r.TagsSerialized
	if tags == "" {
		tags = "{}"
	}
	return json.Marshal(point{
		Metric:    r.FullName(),
		Timestamp: r.Timestamp.Unix(),
		Value:     r.Value,
		Tags:      json.RawMessage(tags),
	})
}

type metadataEntry struct {
	Metric      string `json:"metric"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Rate        string `json:"rate,omitempty"`
}

// Handler sends payloads to a Bosun-compatible HTTP API.
type Handler struct {
	metrics.HandlerBase
	client *httpbase.Client
	url    string
}

// New constructs a bosun Handler posting to url (e.g.
// "https://bosun.example.org") using queue as its PayloadQueue and client
// for the rate-limited HTTP send path.
func New(url string, queue *metrics.PayloadQueue, client *httpbase.Client) *Handler {
	h := &Handler{client: client, url: url}
	h.HandlerBase = metrics.HandlerBase{Queue: queue, Framer: framer{}}
	return h
}

func (h *Handler) Flush(ctx context.Context, payloads []*metrics.Payload) error {
	for _, p := range payloads {
		if p.N == 0 {
			continue
		}
		if _, err := h.client.Post(ctx, h.url+"/api/put", "application/json", p.Bytes(), nil); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) SerializeMetadata(ctx context.Context, defs []metrics.MetricDefinition) error {
	if len(defs) == 0 {
		return nil
	}

	entries := make([]metadataEntry, 0, len(defs))
	for _, d := range defs {
		entries = append(entries, metadataEntry{
			Metric:      d.FullName,
			Description: d.Description,
			Unit:        d.Unit,
			Rate:        d.RateKind.String(),
		})
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(entries); err != nil {
		return fmt.Errorf("%w: %s", metrics.ErrTransportFatal, err.Error())
	}

	_, err := h.client.Post(ctx, h.url+"/api/metadata/put", "application/json", buf.Bytes(), nil)
	return err
}

func (h *Handler) Dispose() {
	h.client.HTTP.CloseIdleConnections()
}
