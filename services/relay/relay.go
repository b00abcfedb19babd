// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relay mediates between a hard-real-time game simulation
// peer and a slow LLM decision backend.
//
// The peer speaks a newline-framed protocol over TCP. ACT ticks are
// time-critical: each gets an immediate reply from the cached action,
// and decisions refresh that cache asynchronously under admission
// control so a fast simulation never floods the backend.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/GridPilot/services/relay/actions"
	"github.com/AleutianAI/GridPilot/services/relay/channel"
	"github.com/AleutianAI/GridPilot/services/relay/datatypes"
	"github.com/AleutianAI/GridPilot/services/relay/events"
	"github.com/AleutianAI/GridPilot/services/relay/protocol"
	"github.com/AleutianAI/GridPilot/services/relay/telemetry"
)

var tracer = otel.Tracer("gridpilot.relay")

// ConfigSource resolves the layered prompt configuration for a level.
// *gameconfig.Resolver satisfies this.
type ConfigSource interface {
	Resolve(gameID, backendID string, level int) datatypes.ResolvedPromptConfig
}

// Decider runs one decision cycle. *decider.Invoker satisfies this.
type Decider interface {
	Decide(ctx context.Context, sessionID string, cfg datatypes.ResolvedPromptConfig, snap datatypes.StateSnapshot) (datatypes.DecisionResult, error)
}

// Relay drives one session over one channel.
type Relay struct {
	session *Session
	ch      *channel.Channel
	configs ConfigSource
	invoker Decider
	feed    events.Broadcaster
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	teardownOnce sync.Once
	onTeardown   func(*Relay)

	// resolved is the prompt configuration for the current level,
	// refreshed on every INIT.
	resolvedMu sync.Mutex
	resolved   datatypes.ResolvedPromptConfig
}

// New wires a relay for one accepted peer connection. onTeardown may
// be nil; it fires exactly once when the session ends, after the
// channel is closed.
func New(ctx context.Context, session *Session, ch *channel.Channel, configs ConfigSource, invoker Decider, feed events.Broadcaster, metrics *telemetry.Metrics, onTeardown func(*Relay)) *Relay {
	if feed == nil {
		feed = events.NopBroadcaster{}
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &Relay{
		session:    session,
		ch:         ch,
		configs:    configs,
		invoker:    invoker,
		feed:       feed,
		metrics:    metrics,
		ctx:        ctx,
		cancel:     cancel,
		onTeardown: onTeardown,
	}
	// Seed the prompt configuration so an out-of-order first ACT
	// still invokes with sane settings.
	r.resolved = configs.Resolve(session.GameID, session.BackendID, 0)
	return r
}

// Session exposes the session record for the observability API.
func (r *Relay) Session() *Session {
	return r.session
}

// Run registers handlers and starts the channel. It returns
// immediately; the relay lives on the channel's read goroutine until
// the peer disconnects or FINISH arrives.
func (r *Relay) Run() {
	r.ch.Start(channel.Handlers{
		OnFrame: r.dispatch,
		OnClose: r.onChannelClose,
	})
}

// dispatch handles one inbound frame. Frames arrive in order on the
// channel's read goroutine; everything slow is pushed off this path.
func (r *Relay) dispatch(correlationID, payload string) {
	phase := protocol.Classify(payload)

	if r.metrics != nil {
		r.metrics.FramesReadTotal.Add(r.ctx, 1)
		r.metrics.TicksTotal.Add(r.ctx, 1,
			metric.WithAttributes(attribute.String("phase", phase.String())))
	}

	switch phase {
	case protocol.PhaseStart:
		r.handleStart(correlationID)
	case protocol.PhaseInit:
		r.handleInit(correlationID, payload)
	case protocol.PhaseAct:
		r.handleAct(correlationID, payload)
	case protocol.PhaseEnd:
		r.handleEnd(correlationID, payload)
	case protocol.PhaseFinish:
		r.handleFinish()
	default:
		// Unknown payloads are answered with the neutral action:
		// if this was a mangled ACT tick, replying late is worse
		// than replying wrong.
		slog.Warn("Unclassifiable payload, replying neutral",
			"session_id", r.session.ID, "correlation_id", correlationID,
			"payload_len", len(payload))
		r.send(correlationID, string(actions.Nil)+protocol.ImageSuffix)
	}
}

func (r *Relay) handleStart(correlationID string) {
	r.session.Activate()
	r.send(correlationID, protocol.TokenStartDone)
	slog.Info("Session started", "session_id", r.session.ID, "remote", r.ch.RemoteAddr())
}

func (r *Relay) handleInit(correlationID, payload string) {
	if _, err := datatypes.DecodeSnapshot([]byte(payload)); err != nil {
		slog.Warn("Malformed INIT payload", "session_id", r.session.ID, "error", err)
		r.send(correlationID, protocol.TokenInitFailed)
		return
	}

	// Re-resolve for the current level so config edits and level
	// progression both take effect at level boundaries.
	resolved := r.configs.Resolve(r.session.GameID, r.session.BackendID, r.session.Level())
	r.resolvedMu.Lock()
	r.resolved = resolved
	r.resolvedMu.Unlock()

	r.session.Activate()
	r.send(correlationID, protocol.TokenInitDone)
	slog.Info("Level initialized", "session_id", r.session.ID,
		"level", r.session.Level(), "backend", resolved.BackendID)
}

// handleAct is the time-critical path. The cached-action reply is
// written before the payload is even parsed; snapshot decoding, the
// tick broadcast, and the decision launch all happen after the write.
func (r *Relay) handleAct(correlationID, payload string) {
	cached := r.session.CachedAction()
	r.send(correlationID, string(cached)+protocol.ImageSuffix)
	r.session.RecordTick()

	if r.metrics != nil {
		r.metrics.RepliesTotal.Add(r.ctx, 1,
			metric.WithAttributes(attribute.String("action", string(cached))))
	}

	snap, err := datatypes.DecodeSnapshot([]byte(payload))
	if err != nil {
		slog.Warn("Malformed ACT payload after reply",
			"session_id", r.session.ID, "error", err)
		return
	}

	r.feed.Broadcast(events.New(r.session.ID, events.TypeTick, events.TickData{
		Snapshot: snap,
		Action:   string(cached),
		Level:    r.session.Level(),
	}))

	generation, reason := r.session.Admit()
	if reason != admitOK {
		if r.metrics != nil {
			r.metrics.InvocationsSkippedTotal.Add(r.ctx, 1,
				metric.WithAttributes(attribute.String("reason", string(reason))))
		}
		return
	}

	r.resolvedMu.Lock()
	cfg := r.resolved
	r.resolvedMu.Unlock()

	go r.decide(generation, cfg, snap)
}

// decide runs one background invocation and commits the result if
// the session has not moved on.
func (r *Relay) decide(generation uint64, cfg datatypes.ResolvedPromptConfig, snap datatypes.StateSnapshot) {
	defer r.session.EndInvocation()

	ctx, span := tracer.Start(r.ctx, "relay.decide")
	defer span.End()

	result, err := r.invoker.Decide(ctx, r.session.ID, cfg, snap)
	if err != nil {
		// Fail soft: the invoker already reported the error; the
		// cached action stays stale-but-valid.
		return
	}

	if !r.session.Commit(generation, actions.Action(result.Action)) {
		slog.Debug("Dropping stale decision result",
			"session_id", r.session.ID, "action", result.Action)
		span.SetAttributes(attribute.Bool("gridpilot.stale", true))
	}
}

func (r *Relay) handleEnd(correlationID, payload string) {
	snap, err := datatypes.DecodeSnapshot([]byte(payload))
	if err != nil {
		slog.Warn("Malformed END payload", "session_id", r.session.ID, "error", err)
		r.send(correlationID, protocol.TokenEndFailed)
		return
	}

	completed := r.session.EndLevel()
	r.send(correlationID, protocol.TokenEndDone)

	if r.metrics != nil {
		r.metrics.LevelsCompletedTotal.Add(r.ctx, 1,
			metric.WithAttributes(attribute.String("outcome", snap.GameWinner)))
	}
	r.feed.Broadcast(events.New(r.session.ID, events.TypeLevelResult, events.LevelResultData{
		Level:      completed,
		GameScore:  snap.GameScore,
		GameWinner: snap.GameWinner,
		GameTick:   snap.GameTick,
	}))
	slog.Info("Level ended", "session_id", r.session.ID,
		"level", completed, "winner", snap.GameWinner, "score", snap.GameScore)
}

func (r *Relay) handleFinish() {
	slog.Info("Session finishing", "session_id", r.session.ID)
	r.teardown()
}

func (r *Relay) onChannelClose(err error) {
	if err != nil {
		slog.Warn("Game connection lost", "session_id", r.session.ID, "error", err)
	}
	r.teardown()
}

// teardown closes the session exactly once: bump the generation so
// in-flight results drop, cancel the relay context, close the
// channel, and emit the session summary.
func (r *Relay) teardown() {
	r.teardownOnce.Do(func() {
		closed := r.session.Close()
		r.cancel()
		r.ch.Close()

		if closed {
			r.feed.Broadcast(events.New(r.session.ID, events.TypeSessionEnd, events.SessionEndData{
				GameID:       r.session.GameID,
				Backend:      r.session.BackendID,
				LevelsPlayed: r.session.LevelsPlayed(),
				TicksServed:  r.session.Ticks(),
			}))
		}
		if r.onTeardown != nil {
			r.onTeardown(r)
		}
		slog.Info("Session closed", "session_id", r.session.ID,
			"levels", r.session.LevelsPlayed(), "ticks", r.session.Ticks())
	})
}

func (r *Relay) send(correlationID, text string) {
	if err := r.ch.Send(correlationID, text); err != nil {
		slog.Warn("Failed to write reply", "session_id", r.session.ID,
			"correlation_id", correlationID, "error", err)
	}
	if r.metrics != nil {
		r.metrics.FramesWrittenTotal.Add(r.ctx, 1)
	}
}
