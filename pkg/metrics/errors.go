// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import "errors"

// Error taxonomy for the registry, writer and transport layers. Each sentinel
// is meant to be checked with errors.Is after a wrapping fmt.Errorf("...: %w", ...).
var (
	// ErrInconsistentMetadata is returned by GetMetric/CreateMetric when a
	// full-name collides with an existing MetricDefinition whose unit,
	// description, metric-type or rate-kind differ.
	ErrInconsistentMetadata = errors.New("[METRICS]> inconsistent metadata for metric")

	// ErrTypeMismatch is returned when a MetricKey already resolves to a
	// metric of a different concrete type than the one being requested.
	ErrTypeMismatch = errors.New("[METRICS]> metric already registered with a different type")

	// ErrTagConflict is returned when a declared tag's key collides with a
	// default tag key configured on the collector.
	ErrTagConflict = errors.New("[METRICS]> tag key conflicts with a default tag")

	// ErrInvalidTag is returned when a declared tag carries an empty key or value.
	ErrInvalidTag = errors.New("[METRICS]> invalid tag")

	// ErrInvalidTagValue is returned when a tag value contains characters
	// outside [A-Za-z0-9_./-].
	ErrInvalidTagValue = errors.New("[METRICS]> invalid tag value")

	// ErrTimestampOutOfRange is returned by the writer when a reading's
	// timestamp falls outside [2000-01-01T00:00:00Z, 2250-01-01T00:00:00Z].
	ErrTimestampOutOfRange = errors.New("[METRICS]> timestamp out of range")

	// ErrNotAttached is returned by Record/Increment when called on a metric
	// that has not yet been attached to a collector.
	ErrNotAttached = errors.New("[METRICS]> metric is not attached to a collector")

	// ErrQueueFull is returned by PayloadQueue.AddPending and Retry, when
	// throwOnQueueFull is set, whenever enqueuing a payload made the queue
	// drop older payloads to stay within maxPayloadCount. Drops made by
	// PayloadQueue.GetFree never return it, and it is not passed to the
	// exception handler.
	ErrQueueFull = errors.New("[METRICS]> payload queue is full")

	// ErrTransportTransient marks a send failure that should be retried.
	ErrTransportTransient = errors.New("[METRICS]> transient transport error")

	// ErrTransportFatal marks a send failure for which the payload is dropped
	// without retry.
	ErrTransportFatal = errors.New("[METRICS]> fatal transport error")

	// ErrShutdownAborted is reported when a pending payload is dropped because
	// the shutdown grace period elapsed before it could be sent.
	ErrShutdownAborted = errors.New("[METRICS]> payload dropped: shutdown grace period exceeded")

	// ErrCollectorClosed is returned by MetricEndpoint.Flush once the
	// endpoint has been closed (Shutdown closes every endpoint). The
	// collector's Get* constructors do not check it and still register
	// metrics after Shutdown.
	ErrCollectorClosed = errors.New("[METRICS]> collector is shut down")
)
