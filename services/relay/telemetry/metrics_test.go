// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNewMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	meter := otel.Meter("test_metrics")
	metrics, err := NewMetrics(meter)
	require.NoError(t, err)

	assert.NotNil(t, metrics.FramesReadTotal)
	assert.NotNil(t, metrics.FramesWrittenTotal)
	assert.NotNil(t, metrics.SessionsActive)
	assert.NotNil(t, metrics.TicksTotal)
	assert.NotNil(t, metrics.RepliesTotal)
	assert.NotNil(t, metrics.LevelsCompletedTotal)
	assert.NotNil(t, metrics.InvocationsTotal)
	assert.NotNil(t, metrics.InvocationDuration)
	assert.NotNil(t, metrics.InvocationsSkippedTotal)

	// Recording on a real meter must not panic.
	ctx := context.Background()
	metrics.TicksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", "ACT")))
	metrics.InvocationDuration.Record(ctx, 1.2,
		metric.WithAttributes(attribute.String("backend", "gemma3:4b"), attribute.String("status", "ok")))
	metrics.SessionsActive.Add(ctx, 1)
	metrics.SessionsActive.Add(ctx, -1)
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // deliberately passing nil context
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "zipkin-classic"
	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestMetricsHandler_AfterPrometheusInit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	assert.NotNil(t, MetricsHandler())
}
