// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decider turns a game state snapshot into an action decision
// by consulting an LLM backend.
//
// A decision is advisory: callers keep serving their cached action
// while an invocation is in flight, and a failed invocation must
// never surface to the game peer. Decide therefore reports errors to
// the event feed and metrics, and leaves reply semantics to the
// caller.
package decider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/GridPilot/services/llm"
	"github.com/AleutianAI/GridPilot/services/relay/actions"
	"github.com/AleutianAI/GridPilot/services/relay/datatypes"
	"github.com/AleutianAI/GridPilot/services/relay/events"
	"github.com/AleutianAI/GridPilot/services/relay/prompt"
	"github.com/AleutianAI/GridPilot/services/relay/telemetry"
)

var tracer = otel.Tracer("gridpilot.relay.decider")

// ClientSource resolves a backend id to an LLM client.
// *llm.Registry satisfies this.
type ClientSource interface {
	ForModel(model string) (llm.LLMClient, error)
}

// Invoker composes prompts, invokes a backend, and parses the reply
// into an action.
//
// Thread Safety: Safe for concurrent use; admission control (one
// in-flight call per session) is the caller's responsibility.
type Invoker struct {
	clients ClientSource
	feed    events.Broadcaster
	metrics *telemetry.Metrics
}

// NewInvoker creates an Invoker. feed and metrics may be nil, in
// which case events and measurements are skipped.
func NewInvoker(clients ClientSource, feed events.Broadcaster, metrics *telemetry.Metrics) *Invoker {
	if feed == nil {
		feed = events.NopBroadcaster{}
	}
	return &Invoker{clients: clients, feed: feed, metrics: metrics}
}

// Decide runs one full decision cycle for the snapshot.
//
// On backend failure the error is recorded on the event feed and
// returned; the caller keeps its cached action. On success the
// result carries the parsed action (ACTION_NIL with Parsed=false
// when the reply named no legal action) and the invocation elapsed
// time.
func (inv *Invoker) Decide(ctx context.Context, sessionID string, cfg datatypes.ResolvedPromptConfig, snap datatypes.StateSnapshot) (datatypes.DecisionResult, error) {
	ctx, span := tracer.Start(ctx, "decider.Decide")
	defer span.End()
	span.SetAttributes(
		attribute.String("gridpilot.backend", cfg.BackendID),
		attribute.String("gridpilot.game_id", cfg.GameID),
		attribute.Int64("gridpilot.game_tick", snap.GameTick),
	)

	client, err := inv.clients.ForModel(cfg.BackendID)
	if err != nil {
		inv.recordFailure(ctx, span, sessionID, cfg.BackendID, err)
		return datatypes.DecisionResult{}, fmt.Errorf("resolve backend %q: %w", cfg.BackendID, err)
	}

	input := prompt.Compose(snap, cfg)
	var messages []llm.Message
	if input.System != "" {
		messages = append(messages, llm.Message{Role: "system", Content: input.System})
	}
	messages = append(messages, llm.Message{Role: "user", Content: input.User})
	params := llm.GenerationParams{Temperature: cfg.Temperature}
	if cfg.MaxOutputTokens > 0 {
		maxTokens := cfg.MaxOutputTokens
		params.MaxTokens = &maxTokens
	}

	start := time.Now()
	raw, err := client.Chat(ctx, messages, params)
	elapsed := time.Since(start)

	if inv.metrics != nil {
		inv.metrics.InvocationDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("backend", cfg.BackendID)))
	}

	if err != nil {
		inv.recordFailure(ctx, span, sessionID, cfg.BackendID, err)
		return datatypes.DecisionResult{}, fmt.Errorf("invoke backend %q: %w", cfg.BackendID, err)
	}

	legal := actions.FromStrings(snap.AvailableActions)
	action, parsed := actions.Parse(raw, legal)
	if !parsed {
		slog.Warn("Backend reply named no legal action",
			"backend", cfg.BackendID, "session_id", sessionID, "reply_len", len(raw))
	}

	if inv.metrics != nil {
		inv.metrics.InvocationsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", cfg.BackendID),
			attribute.String("status", "ok"),
		))
	}
	inv.feed.Broadcast(events.New(sessionID, events.TypeReasoning, events.ReasoningData{
		System:    input.System,
		User:      input.User,
		RawOutput: raw,
		Action:    string(action),
		Parsed:    parsed,
		ElapsedMS: elapsed.Milliseconds(),
		Backend:   cfg.BackendID,
	}))

	return datatypes.DecisionResult{
		Action:    string(action),
		RawOutput: raw,
		Parsed:    parsed,
		Elapsed:   elapsed,
	}, nil
}

func (inv *Invoker) recordFailure(ctx context.Context, span trace.Span, sessionID, backend string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	slog.Error("Backend invocation failed", "backend", backend, "session_id", sessionID, "error", err)

	if inv.metrics != nil {
		inv.metrics.InvocationsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", "error"),
		))
	}
	inv.feed.Broadcast(events.New(sessionID, events.TypeInvocationError, events.InvocationErrorData{
		Backend: backend,
		Error:   err.Error(),
	}))
}
