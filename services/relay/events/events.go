// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events defines the observability events the relay core emits
// and the WebSocket hub that fans them out to spectators. The core only
// depends on the Broadcaster interface; the UI layer consuming the feed
// lives outside this repository.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/GridPilot/services/relay/datatypes"
)

// Type discriminates event payloads on the spectator feed.
type Type string

const (
	// TypeTick is a per-tick state update.
	TypeTick Type = "tick"

	// TypeReasoning is a per-invocation reasoning record.
	TypeReasoning Type = "reasoning"

	// TypeInvocationError is a failed backend invocation.
	TypeInvocationError Type = "invocation_error"

	// TypeLevelResult is a per-level-end result.
	TypeLevelResult Type = "level_result"

	// TypeSessionEnd is the session-end summary.
	TypeSessionEnd Type = "session_end"
)

// Event is the envelope every broadcast wears.
type Event struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Type      Type   `json:"type"`
	CreatedAt int64  `json:"createdAt"`
	Data      any    `json:"data"`
}

// New stamps an envelope with a fresh id and timestamp.
func New(sessionID string, eventType Type, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      eventType,
		CreatedAt: time.Now().UnixMilli(),
		Data:      data,
	}
}

// TickData is the payload of TypeTick.
type TickData struct {
	Snapshot datatypes.StateSnapshot `json:"snapshot"`
	Action   string                  `json:"action"`
	Level    int                     `json:"level"`
}

// ReasoningData is the payload of TypeReasoning.
type ReasoningData struct {
	System    string `json:"system,omitempty"`
	User      string `json:"user"`
	RawOutput string `json:"rawOutput"`
	Action    string `json:"action"`
	Parsed    bool   `json:"parsed"`
	ElapsedMS int64  `json:"elapsedMs"`
	Backend   string `json:"backend"`
}

// InvocationErrorData is the payload of TypeInvocationError.
type InvocationErrorData struct {
	Backend string `json:"backend"`
	Error   string `json:"error"`
}

// LevelResultData is the payload of TypeLevelResult.
type LevelResultData struct {
	Level      int     `json:"level"`
	GameScore  float64 `json:"gameScore"`
	GameWinner string  `json:"gameWinner"`
	GameTick   int64   `json:"gameTick"`
}

// SessionEndData is the payload of TypeSessionEnd.
type SessionEndData struct {
	GameID       string `json:"gameId"`
	Backend      string `json:"backend"`
	LevelsPlayed int    `json:"levelsPlayed"`
	TicksServed  int64  `json:"ticksServed"`
}

// Broadcaster is the narrow surface the relay core emits through.
type Broadcaster interface {
	Broadcast(event Event)
}

// NopBroadcaster discards all events. Useful in tests.
type NopBroadcaster struct{}

// Broadcast implements the Broadcaster interface.
func (NopBroadcaster) Broadcast(Event) {}

var _ Broadcaster = NopBroadcaster{}
