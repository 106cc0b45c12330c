// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"strconv"
)

// earlyFinalizeThreshold is the remaining-space heuristic below which a
// payload is finalized and handed to the queue even though more readings
// might technically still fit: it keeps payloads from growing a single
// reading at a time right up against maxPayloadSize, where one more
// reading's encoded bytes (tag string, suffix, float formatting) would not
// fit and force a rotation anyway.
const earlyFinalizeThreshold = 150

// Framer abstracts one endpoint's wire framing so a single chunked Writer
// implementation can serve Bosun/DataDog/SignalFx's JSON framing and
// anything else a Handler wants, by supplying only the encoding rules. The
// statsd handler does not use it; it has its own one-datagram-per-reading
// Writer.
type Framer interface {
	// Open returns the bytes written at the start of a fresh payload.
	Open() []byte
	// Close returns the bytes written once a payload is finalized.
	Close() []byte
	// Separator returns the bytes written between two consecutive encoded
	// readings in the same payload.
	Separator() []byte
	// Encode renders one reading's wire body. tsMillis is the reading's
	// timestamp pre-formatted as milliseconds-since-epoch, since that string
	// is identical for every reading sharing a PreSerialize call's `now`.
	Encode(r MetricReading, tsMillis string) ([]byte, error)
}

// chunkedWriter implements Writer over a PayloadQueue and Framer, rotating to
// a fresh payload whenever the current one can't hold the next reading (or
// the remaining space drops below the early-finalize heuristic). Space is
// checked before a reading is written, so a reading is written whole into
// one payload and never split across two.
type chunkedWriter struct {
	queue    *PayloadQueue
	framer   Framer
	current  *Payload
	wroteAny bool

	tsCache map[int64]string
}

func newChunkedWriter(queue *PayloadQueue, framer Framer) *chunkedWriter {
	return &chunkedWriter{queue: queue, framer: framer, tsCache: make(map[int64]string, 4)}
}

func (w *chunkedWriter) tsMillis(r MetricReading) string {
	ms := r.UnixMilli()
	if s, ok := w.tsCache[ms]; ok {
		return s
	}
	s := strconv.FormatInt(ms, 10)
	w.tsCache[ms] = s
	return s
}

func (w *chunkedWriter) WriteReading(r MetricReading) error {
	if err := validateTimestamp(r.Timestamp); err != nil {
		return err
	}

	encoded, err := w.framer.Encode(r, w.tsMillis(r))
	if err != nil {
		return err
	}

	if w.current == nil {
		w.openPayload()
	}

	sep := w.framer.Separator()
	needed := len(encoded)
	if w.wroteAny {
		needed += len(sep)
	}

	if w.current.Remaining() < needed+len(w.framer.Close()) {
		w.finalize()
		w.openPayload()
		// A reading that alone doesn't fit even a fresh, empty payload is a
		// configuration error (maxPayloadSize too small); write it anyway so
		// data isn't silently lost, rather than looping forever.
	}

	if w.wroteAny {
		w.current.N += copy(w.current.Buf[w.current.N:], sep)
	}
	w.current.N += copy(w.current.Buf[w.current.N:], encoded)
	w.wroteAny = true

	if w.current.Remaining() < earlyFinalizeThreshold {
		w.finalize()
	}

	return nil
}

func (w *chunkedWriter) openPayload() {
	w.current = w.queue.GetFree()
	w.current.N += copy(w.current.Buf[w.current.N:], w.framer.Open())
	w.wroteAny = false
}

// finalize closes out the current payload (writing the Close framing bytes
// and handing it to the queue) if one is open, and otherwise does nothing --
// used both for mid-batch rotation and for Finish at the end of a batch.
func (w *chunkedWriter) finalize() {
	if w.current == nil {
		return
	}
	w.current.N += copy(w.current.Buf[w.current.N:], w.framer.Close())
	_ = w.queue.AddPending(w.current)
	w.current = nil
	w.wroteAny = false
}

// Finish flushes any partially written payload at the end of a snapshot
// batch, even if it never hit the early-finalize threshold.
func (w *chunkedWriter) Finish() {
	w.finalize()
}

// HandlerBase provides the default CreateWriter/BeginBatch a Handler
// implementation can embed when its framing needs nothing fancier than the
// chunked Writer plus a Framer.
type HandlerBase struct {
	Queue  *PayloadQueue
	Framer Framer
}

func (h *HandlerBase) BeginBatch() {}

func (h *HandlerBase) CreateWriter() Writer {
	return newChunkedWriter(h.Queue, h.Framer)
}
