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
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the GridPilot relay.
//
// Description:
//
//	Provides standard counters, histograms, and gauges for the wire
//	channel, game sessions, and backend invocations. All metrics use
//	the "gridpilot_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Channel Metrics ---

	// FramesReadTotal counts frames read from game connections.
	FramesReadTotal metric.Int64Counter

	// FramesWrittenTotal counts frames written to game connections.
	FramesWrittenTotal metric.Int64Counter

	// --- Session Metrics ---

	// SessionsActive tracks currently active game sessions.
	SessionsActive metric.Int64UpDownCounter

	// TicksTotal counts state ticks received by phase.
	TicksTotal metric.Int64Counter

	// RepliesTotal counts action replies sent by action.
	RepliesTotal metric.Int64Counter

	// LevelsCompletedTotal counts level completions by outcome.
	LevelsCompletedTotal metric.Int64Counter

	// --- Invocation Metrics ---

	// InvocationsTotal counts backend invocations by backend and status.
	InvocationsTotal metric.Int64Counter

	// InvocationDuration records backend invocation duration in seconds.
	InvocationDuration metric.Float64Histogram

	// InvocationsSkippedTotal counts ticks where admission control
	// skipped a backend invocation, by reason.
	InvocationsSkippedTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Returns an error if any metric registration fails.
//
// Example:
//
//	meter := otel.Meter("gridpilot.relay")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.TicksTotal.Add(ctx, 1, ...)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- Channel Metrics ---
	m.FramesReadTotal, err = meter.Int64Counter(
		"gridpilot_frames_read_total",
		metric.WithDescription("Total frames read from game connections"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create frames_read_total: %w", err)
	}

	m.FramesWrittenTotal, err = meter.Int64Counter(
		"gridpilot_frames_written_total",
		metric.WithDescription("Total frames written to game connections"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create frames_written_total: %w", err)
	}

	// --- Session Metrics ---
	m.SessionsActive, err = meter.Int64UpDownCounter(
		"gridpilot_sessions_active",
		metric.WithDescription("Currently active game sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sessions_active: %w", err)
	}

	m.TicksTotal, err = meter.Int64Counter(
		"gridpilot_ticks_total",
		metric.WithDescription("Total state ticks received"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ticks_total: %w", err)
	}

	m.RepliesTotal, err = meter.Int64Counter(
		"gridpilot_replies_total",
		metric.WithDescription("Total action replies sent"),
		metric.WithUnit("{reply}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create replies_total: %w", err)
	}

	m.LevelsCompletedTotal, err = meter.Int64Counter(
		"gridpilot_levels_completed_total",
		metric.WithDescription("Total level completions"),
		metric.WithUnit("{level}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create levels_completed_total: %w", err)
	}

	// --- Invocation Metrics ---
	m.InvocationsTotal, err = meter.Int64Counter(
		"gridpilot_invocations_total",
		metric.WithDescription("Total backend invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create invocations_total: %w", err)
	}

	m.InvocationDuration, err = meter.Float64Histogram(
		"gridpilot_invocation_duration_seconds",
		metric.WithDescription("Backend invocation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create invocation_duration: %w", err)
	}

	m.InvocationsSkippedTotal, err = meter.Int64Counter(
		"gridpilot_invocations_skipped_total",
		metric.WithDescription("Ticks where admission control skipped an invocation"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create invocations_skipped_total: %w", err)
	}

	return m, nil
}
