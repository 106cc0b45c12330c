// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Handler is the per-backend interface a metric endpoint implements. The
// collector never talks wire protocol directly; it only asks a Handler to
// open a Writer, serialize metadata, and flush whatever payloads a
// PayloadQueue has accumulated.
type Handler interface {
	// CreateWriter returns a fresh Writer for one snapshot batch.
	CreateWriter() Writer

	// BeginBatch is called once before a batch's metrics are serialized,
	// letting a Handler reset any per-batch state.
	BeginBatch()

	// Flush sends every payload currently queued. Implementations should
	// return a transient error (wrapping ErrTransportTransient) for
	// conditions worth retrying and a fatal one (wrapping
	// ErrTransportFatal) otherwise.
	Flush(ctx context.Context, payloads []*Payload) error

	// SerializeMetadata encodes and sends the metadata push for the given
	// definitions. Called on the collector's metadata interval, independent
	// of the snapshot loop.
	SerializeMetadata(ctx context.Context, defs []MetricDefinition) error

	// Dispose releases any resources (connections, file handles) held by
	// the handler. Called once during collector Shutdown.
	Dispose()
}

// AfterSendFunc is called once per flush attempt (success or failure) for
// observability hooks distinct from the exception handler.
type AfterSendFunc func(endpoint string, payloadCount int, err error)

// ExceptionFunc is called with the errors an endpoint's Handler returns from
// Flush or SerializeMetadata and with errors from serializing a metric.
// Errors and panics from snapshot producer closures never reach it; they are
// swallowed and only mean "no reading this cycle".
type ExceptionFunc func(endpoint string, err error)

// endpointState is the per-endpoint flush state machine: idle is the resting
// state between snapshots; draining/sending track an in-flight flush; a
// failure routes back to idle having either handed the payloads to the
// queue's retry list for the next snapshot (transient) or released them
// (fatal). No backoff delay is applied. closed is terminal.
type endpointState int32

const (
	endpointIdle endpointState = iota
	endpointDraining
	endpointSending
	endpointClosed
)

// MetricEndpoint pairs a Handler with its PayloadQueue and retry policy. The
// collector's snapshot loop drives exactly one flush per endpoint per
// interval; gocron's non-reentrant job execution (the collector never
// schedules a second snapshot job while one is still running) is what keeps
// two flushes from ever overlapping for the same endpoint, so this state
// machine exists for observability and Shutdown-time draining rather than
// for mutual exclusion.
type MetricEndpoint struct {
	Name    string
	Handler Handler
	Queue   *PayloadQueue

	MaxRetries          int
	DelayBetweenRetries time.Duration

	AfterSend AfterSendFunc
	OnError   ExceptionFunc

	state atomic.Int32

	lastFlushMu  sync.Mutex
	lastFlushErr error
}

func NewMetricEndpoint(name string, handler Handler, queue *PayloadQueue, maxRetries int, delay time.Duration) *MetricEndpoint {
	return &MetricEndpoint{
		Name:                name,
		Handler:             handler,
		Queue:               queue,
		MaxRetries:          maxRetries,
		DelayBetweenRetries: delay,
	}
}

func (e *MetricEndpoint) setState(s endpointState) { e.state.Store(int32(s)) }
func (e *MetricEndpoint) getState() endpointState  { return endpointState(e.state.Load()) }

// setLastFlushOutcome records the result of the most recent Handler.Flush
// call, read back via LastFlushErr for Collector.Stats().
func (e *MetricEndpoint) setLastFlushOutcome(err error) {
	e.lastFlushMu.Lock()
	e.lastFlushErr = err
	e.lastFlushMu.Unlock()
}

// LastFlushErr returns the outcome of the most recent Handler.Flush call
// (nil on success, nil if no flush has happened yet).
func (e *MetricEndpoint) LastFlushErr() error {
	e.lastFlushMu.Lock()
	defer e.lastFlushMu.Unlock()
	return e.lastFlushErr
}

// Flush drains the endpoint's queue through its Handler exactly once per
// call: one snapshot tick is one send attempt, never a blocking retry loop.
// A transient failure hands every payload in the batch back to the queue's
// retry list (incrementing each payload's send-attempts counter, so one that
// has failed MaxRetries times is dropped rather than retried forever) for
// the next snapshot cycle to pick up; a fatal failure releases the batch
// immediately since retrying it would never succeed.
func (e *MetricEndpoint) Flush(ctx context.Context) error {
	if e.getState() == endpointClosed {
		return ErrCollectorClosed
	}
	e.setState(endpointDraining)
	defer e.setState(endpointIdle)

	e.Queue.MergeRetry()
	payloads := e.Queue.TakeForFlush()
	if len(payloads) == 0 {
		return nil
	}

	e.setState(endpointSending)

	err := e.Handler.Flush(ctx, payloads)
	e.setLastFlushOutcome(err)
	if e.AfterSend != nil {
		e.AfterSend(e.Name, len(payloads), err)
	}

	if err == nil {
		for _, p := range payloads {
			e.Queue.Release(p)
		}
		return nil
	}

	if e.OnError != nil {
		e.OnError(e.Name, err)
	}

	if !isTransient(err) {
		for _, p := range payloads {
			e.Queue.Release(p)
		}
		return err
	}

	for _, p := range payloads {
		_ = e.Queue.Retry(p, e.MaxRetries)
	}
	return err
}

// Close transitions the endpoint to its terminal state and disposes its
// Handler. Idempotent.
func (e *MetricEndpoint) Close() {
	e.setState(endpointClosed)
	e.Handler.Dispose()
}

func isTransient(err error) bool {
	return errors.Is(err, ErrTransportTransient)
}
