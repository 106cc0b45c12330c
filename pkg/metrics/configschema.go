// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

const configSchema = `{
    "type": "object",
    "description": "Configuration for the in-process metrics collector.",
    "properties": {
        "snapshot-interval": {
            "description": "How often registered metrics are snapshotted and flushed to every endpoint, e.g. '10s'.",
            "type": "string"
        },
        "metadata-interval": {
            "description": "How often metric metadata (name/unit/description/type) is pushed to every endpoint, e.g. '5m'.",
            "type": "string"
        },
        "metrics-name-prefix": {
            "description": "Prefix prepended to every metric's full name, e.g. 'myapp.'.",
            "type": "string"
        },
        "default-tags": {
            "description": "Tags attached to every metric registered with this collector, as alternating key/value strings.",
            "type": "array",
            "items": {
                "type": "string"
            }
        },
        "throw-on-queue-full": {
            "description": "If true, a full payload queue causes AddPending/Retry to return ErrQueueFull instead of silently dropping the oldest payload.",
            "type": "boolean"
        },
        "max-payload-size": {
            "description": "Maximum size in bytes of a single payload buffer handed to an endpoint.",
            "type": "integer"
        },
        "max-payload-count": {
            "description": "Maximum number of payloads (pending plus awaiting retry) an endpoint's queue holds before dropping the oldest.",
            "type": "integer"
        },
        "max-retries": {
            "description": "Number of failed send attempts (one per snapshot cycle) after which a payload is dropped instead of being kept for the next cycle; 0 selects the default of 3.",
            "type": "integer"
        },
        "delay-between-retries": {
            "description": "Stored on each endpoint, e.g. '2s'. A failed payload is retried on the next snapshot cycle; this value does not change that spacing.",
            "type": "string"
        },
        "shutdown-grace-period": {
            "description": "How long Shutdown waits for the final best-effort flush before giving up, e.g. '5s'.",
            "type": "string"
        },
        "endpoints": {
            "description": "Endpoint handler configurations, keyed by kind.",
            "type": "array",
            "items": {
                "type": "object",
                "properties": {
                    "kind": {
                        "description": "One of 'bosun', 'datadog', 'signalfx', 'statsd', 'local'.",
                        "type": "string"
                    },
                    "name": {
                        "description": "Label used in logs, self-metrics and AfterSend/exception callbacks.",
                        "type": "string"
                    },
                    "url": {
                        "description": "Endpoint base URL, for the HTTP-based handlers.",
                        "type": "string"
                    },
                    "api-key": {
                        "description": "API key / auth token, for the handlers that require one.",
                        "type": "string"
                    },
                    "address": {
                        "description": "host:port, for the statsd UDP handler.",
                        "type": "string"
                    }
                },
                "required": ["kind", "name"]
            }
        }
    },
    "required": ["endpoints"]
}`
