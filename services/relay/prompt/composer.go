// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt turns a state snapshot and a resolved layered
// configuration into the decision backend's input. Composition is pure
// and deterministic.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/GridPilot/services/relay/datatypes"
)

// ComposedInput is the two-part backend input: an optional system-level
// identity segment and the per-tick user segment.
type ComposedInput struct {
	// System is the global instruction layer, empty when not configured.
	System string

	// User is the game context, level context, and tick-state block,
	// blank-line joined with absent layers omitted.
	User string
}

// Compose builds the backend input for one tick.
func Compose(snap datatypes.StateSnapshot, cfg datatypes.ResolvedPromptConfig) ComposedInput {
	vars := placeholderValues(snap, cfg)

	var parts []string
	if ctx := strings.TrimSpace(Substitute(cfg.GameContext, vars)); ctx != "" {
		parts = append(parts, ctx)
	}
	if lvl := strings.TrimSpace(Substitute(cfg.LevelContext, vars)); lvl != "" {
		parts = append(parts, lvl)
	}
	parts = append(parts, stateBlock(snap))

	return ComposedInput{
		System: strings.TrimSpace(Substitute(cfg.GlobalInstruction, vars)),
		User:   strings.Join(parts, "\n\n"),
	}
}

// stateBlock renders the always-present per-tick facts.
func stateBlock(snap datatypes.StateSnapshot) string {
	x, y := snap.Position()
	var b strings.Builder
	b.WriteString("Current state:\n")
	fmt.Fprintf(&b, "Score: %s\n", formatNumber(snap.GameScore))
	fmt.Fprintf(&b, "Health: %d/%d\n", snap.AvatarHealth, snap.AvatarMaxHealth)
	fmt.Fprintf(&b, "Tick: %d\n", snap.GameTick)
	fmt.Fprintf(&b, "Position: (%s, %s)\n", formatNumber(x), formatNumber(y))
	fmt.Fprintf(&b, "Legal actions: %s", strings.Join(snap.AvailableActions, ", "))
	return b.String()
}

// placeholderValues enumerates the recognized {{name}} markers. The set
// is fixed; unrecognized names pass through Substitute untouched so
// configuration typos stay visible.
func placeholderValues(snap datatypes.StateSnapshot, cfg datatypes.ResolvedPromptConfig) map[string]string {
	x, y := snap.Position()
	return map[string]string{
		"gameId":           cfg.GameID,
		"gameScore":        formatNumber(snap.GameScore),
		"avatarHealth":     strconv.Itoa(snap.AvatarHealth),
		"avatarMaxHealth":  strconv.Itoa(snap.AvatarMaxHealth),
		"gameTick":         strconv.FormatInt(snap.GameTick, 10),
		"avatarPosition":   fmt.Sprintf("(%s, %s)", formatNumber(x), formatNumber(y)),
		"availableActions": strings.Join(snap.AvailableActions, ", "),
	}
}

// Substitute replaces recognized {{name}} markers with their values and
// leaves unrecognized markers verbatim.
func Substitute(layer string, vars map[string]string) string {
	if layer == "" || !strings.Contains(layer, "{{") {
		return layer
	}
	var b strings.Builder
	rest := layer
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[open:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += open
		name := rest[open+2 : end]
		if value, ok := vars[name]; ok {
			b.WriteString(rest[:open])
			b.WriteString(value)
		} else {
			b.WriteString(rest[:end+2])
		}
		rest = rest[end+2:]
	}
}

// formatNumber renders a float without a trailing ".0" for whole values.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
