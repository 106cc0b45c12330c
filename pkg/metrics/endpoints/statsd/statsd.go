// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package statsd implements a metrics.Handler sending readings as
// statsd lines over UDP:
// "metric.name:value|c" for counters, "metric.name:value|g" for gauges,
// with tags appended Datadog-extension style as "|#k:v,k2:v2".
//
// Unlike the JSON-framed endpoints, statsd readings are never batched into a
// shared payload: UDP has no multi-reading frame, so each WriteReading call
// queues its own single-datagram Payload, and Handler.Flush sends one
// datagram per payload. Because UDP datagrams have no response to classify,
// every send is best-effort: Flush never returns a transient error (there is
// nothing to retry against), only a fatal one if the socket itself is
// unusable.
package statsd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
)

// encoder renders one MetricReading as a single statsd line.
type encoder struct{}

func (encoder) encode(r metrics.MetricReading) []byte {
	var kind string
	switch r.Type {
	case metrics.TypeCounter, metrics.TypeCumulativeCounter:
		kind = "c"
	default:
		kind = "g"
	}

	var b strings.Builder
	b.WriteString(r.FullName())
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(r.Value, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(kind)

	if tags := statsdTags(r.TagsSerialized); tags != "" {
		b.WriteString("|#")
		b.WriteString(tags)
	}

	return []byte(b.String())
}

func statsdTags(tagsJSON string) string {
	pairs := parseTagJSON(tagsJSON)
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		parts = append(parts, kv[0]+":"+kv[1])
	}
	return strings.Join(parts, ",")
}

// parseTagJSON extracts key/value pairs from the canonical tag JSON object
// without a full json.Unmarshal, since statsd lines are on the hottest
// send path this package touches and the tag string is already
// small/well-formed by construction (see tags.go's canonicalTags).
func parseTagJSON(s string) [][2]string {
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var out [][2]string
	for _, entry := range strings.Split(s, ",") {
		kv := strings.SplitN(entry, ":", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.Trim(strings.TrimSpace(kv[0]), `"`)
		v := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		out = append(out, [2]string{k, v})
	}
	return out
}

// writer queues each reading as its own payload the instant it is written,
// eagerly, rather than accumulating several readings into one payload like
// the shared chunked Writer: one statsd line is one UDP datagram.
type writer struct {
	queue *metrics.PayloadQueue
}

func newWriter(queue *metrics.PayloadQueue) *writer {
	return &writer{queue: queue}
}

func (w *writer) WriteReading(r metrics.MetricReading) error {
	if err := metrics.ValidateTimestamp(r.Timestamp); err != nil {
		return err
	}

	line := (encoder{}).encode(r)

	p := w.queue.GetFree()
	p.N = copy(p.Buf, line)
	return w.queue.AddPending(p)
}

// Handler sends payloads as UDP datagrams to a statsd daemon.
type Handler struct {
	queue *metrics.PayloadQueue
	conn  net.Conn
	addr  string
}

// New dials addr ("host:port") over UDP and constructs a statsd Handler.
func New(addr string, queue *metrics.PayloadQueue) (*Handler, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing statsd at %s: %s", metrics.ErrTransportFatal, addr, err.Error())
	}

	return &Handler{queue: queue, conn: conn, addr: addr}, nil
}

func (h *Handler) CreateWriter() metrics.Writer { return newWriter(h.queue) }

func (h *Handler) BeginBatch() {}

func (h *Handler) Flush(ctx context.Context, payloads []*metrics.Payload) error {
	for _, p := range payloads {
		if p.N == 0 {
			continue
		}
		if _, err := h.conn.Write(p.Bytes()); err != nil {
			cclog.Warnf("[METRICS]> statsd %s: write failed: %s", h.addr, err.Error())
			return fmt.Errorf("%w: %s", metrics.ErrTransportFatal, err.Error())
		}
	}
	return nil
}

// SerializeMetadata is a no-op: statsd has no metadata channel.
func (h *Handler) SerializeMetadata(ctx context.Context, defs []metrics.MetricDefinition) error {
	return nil
}

func (h *Handler) Dispose() {
	_ = h.conn.Close()
}
