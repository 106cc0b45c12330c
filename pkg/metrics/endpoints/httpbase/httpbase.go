// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpbase provides the shared HTTP send path for the Bosun,
// DataDog and SignalFx endpoint handlers: a rate-limited client, a POST
// helper, and the retry classification every one of them uses to decide
// whether a failed send should be retried by the collector or treated as
// fatal.
package httpbase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
	"golang.org/x/time/rate"
)

// Client wraps an http.Client with a token-bucket rate limiter so a burst of
// payloads from a single flush never exceeds an endpoint's configured send
// rate. A ratePerSecond of zero or less passed to NewClient disables
// limiting.
type Client struct {
	HTTP    http.Client
	limiter *rate.Limiter
}

// NewClient builds a Client with the given timeout and, if ratePerSecond is
// positive, a token-bucket limiter allowing bursts of size burst.
func NewClient(timeout time.Duration, ratePerSecond float64, burst int) *Client {
	c := &Client{HTTP: http.Client{Timeout: timeout}}
	if ratePerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return c
}

// Post sends body to url with contentType, waiting on the rate limiter (if
// configured) before issuing the request. It returns the response body and
// classifies the outcome via Classify.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte, headers map[string]string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %s", metrics.ErrTransportTransient, err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", metrics.ErrTransportFatal, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		cclog.Warnf("[METRICS]> %s: request error: %s", url, err.Error())
		return nil, fmt.Errorf("%w: %s", metrics.ErrTransportTransient, err.Error())
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return respBody, Classify(url, res.StatusCode, respBody)
}

// Classify turns an HTTP response's status code into the error taxonomy the
// collector understands: 2xx is success (nil error), 429 and 5xx are
// transient (worth retrying), everything else is fatal (a malformed
// request/auth failure won't fix itself on retry).
func Classify(url string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests, status >= 500:
		return fmt.Errorf("%w: '%s': HTTP %d: %s", metrics.ErrTransportTransient, url, status, string(body))
	default:
		return fmt.Errorf("%w: '%s': HTTP %d: %s", metrics.ErrTransportFatal, url, status, string(body))
	}
}
