// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bosun

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics/endpoints/httpbase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFlushPostsJSONArray(t *testing.T) {
	var gotPath string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	queue := metrics.NewPayloadQueue(4096, 10, false)
	client := httpbase.NewClient(time.Second, 0, 0)
	h := New(server.URL, queue, client)

	w := h.CreateWriter()
	require.NoError(t, w.WriteReading(metrics.MetricReading{
		Name: "cpu_load", Type: metrics.TypeGauge, Value: 0.5,
		TagsSerialized: `{"host":"n001"}`, Timestamp: time.Now(),
	}))
	w.(interface{ Finish() }).Finish()

	payloads := queue.TakeForFlush()
	require.Len(t, payloads, 1)

	assert.NoError(t, h.Flush(t.Context(), payloads))
	assert.Equal(t, "/api/put", gotPath)

	var points []point
	require.NoError(t, json.Unmarshal(gotBody, &points))
	require.Len(t, points, 1)
	assert.Equal(t, "cpu_load", points[0].Metric)
	assert.Equal(t, 0.5, points[0].Value)

	var tags map[string]string
	require.NoError(t, json.Unmarshal(points[0].Tags, &tags))
	assert.Equal(t, "n001", tags["host"])
}

func TestHandlerSerializeMetadataPostsDefinitions(t *testing.T) {
	var gotPath string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	queue := metrics.NewPayloadQueue(4096, 10, false)
	client := httpbase.NewClient(time.Second, 0, 0)
	h := New(server.URL, queue, client)

	err := h.SerializeMetadata(t.Context(), []metrics.MetricDefinition{
		{FullName: "cpu_load", Unit: "load", Description: "CPU load average", RateKind: metrics.RateGauge},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/metadata/put", gotPath)

	var entries []metadataEntry
	require.NoError(t, json.Unmarshal(gotBody, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "cpu_load", entries[0].Metric)
	assert.Equal(t, "gauge", entries[0].Rate)
}
