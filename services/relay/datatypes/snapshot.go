// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire and domain types shared by the relay
// core, the decision pipeline, and the observability surfaces.
package datatypes

import (
	"encoding/json"
	"fmt"
	"time"
)

// StateSnapshot is the simulation peer's view of one tick. Immutable once
// decoded; several snapshots may be superseded before being acted upon, and
// only the newest matters.
type StateSnapshot struct {
	Phase            string    `json:"phase"`
	GameScore        float64   `json:"gameScore"`
	AvatarHealth     int       `json:"avatarHealthPoints"`
	AvatarMaxHealth  int       `json:"avatarMaxHealthPoints"`
	GameTick         int64     `json:"gameTick"`
	AvatarPosition   []float64 `json:"avatarPosition"`
	AvailableActions []string  `json:"availableActions"`
	GameWinner       string    `json:"gameWinner,omitempty"`
}

// DecodeSnapshot parses a structured payload into a StateSnapshot.
func DecodeSnapshot(payload []byte) (StateSnapshot, error) {
	var snap StateSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return StateSnapshot{}, fmt.Errorf("failed to decode state snapshot: %w", err)
	}
	return snap, nil
}

// Position returns the avatar position as (x, y), zero-valued when the
// peer omitted it.
func (s StateSnapshot) Position() (x, y float64) {
	if len(s.AvatarPosition) >= 2 {
		return s.AvatarPosition[0], s.AvatarPosition[1]
	}
	return 0, 0
}

// ResolvedPromptConfig is the layered prompt configuration for one
// (game, backend, level) triple, as produced by the config resolver. The
// relay treats it as opaque immutable input.
type ResolvedPromptConfig struct {
	// GameID identifies the simulation this configuration was resolved for.
	GameID string

	// BackendID is the decision backend identifier, e.g. "qwen3:8b" or
	// "openai/gpt-4o-mini".
	BackendID string

	// GlobalInstruction is the optional system-level identity layer.
	GlobalInstruction string

	// GameContext is the optional backend/game context layer.
	GameContext string

	// LevelContext is the optional level/progression layer.
	LevelContext string

	// MaxOutputTokens caps the backend's output length.
	MaxOutputTokens int

	// Temperature is the sampling randomness; nil means backend default.
	Temperature *float32
}

// DecisionResult is one validated outcome of a backend invocation.
type DecisionResult struct {
	// Action is the parsed, validated action token.
	Action string

	// RawOutput is the backend's unmodified text output.
	RawOutput string

	// Parsed is false when the output yielded no legal action and the
	// neutral fallback was substituted.
	Parsed bool

	// Elapsed is the wall time of the whole invocation.
	Elapsed time.Duration
}
