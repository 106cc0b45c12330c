// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpbase

import (
	"net/http"
	"testing"

	"github.com/ClusterCockpit/cc-metrics-client/pkg/metrics"
	"github.com/stretchr/testify/assert"
)

func TestClassifySuccess(t *testing.T) {
	assert.NoError(t, Classify("u", http.StatusOK, nil))
	assert.NoError(t, Classify("u", http.StatusNoContent, nil))
}

func TestClassifyTooManyRequestsIsTransient(t *testing.T) {
	err := Classify("u", http.StatusTooManyRequests, []byte("slow down"))
	assert.ErrorIs(t, err, metrics.ErrTransportTransient)
}

func TestClassifyServerErrorIsTransient(t *testing.T) {
	err := Classify("u", http.StatusBadGateway, nil)
	assert.ErrorIs(t, err, metrics.ErrTransportTransient)
}

func TestClassifyClientErrorIsFatal(t *testing.T) {
	err := Classify("u", http.StatusUnauthorized, []byte("bad token"))
	assert.ErrorIs(t, err, metrics.ErrTransportFatal)
}

func TestClassifyBadRequestIsFatal(t *testing.T) {
	err := Classify("u", http.StatusBadRequest, nil)
	assert.ErrorIs(t, err, metrics.ErrTransportFatal)
}
