// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package actions defines the closed action vocabulary the simulation
// peer understands and the parser that extracts one action from a
// decision backend's free-form text output.
package actions

import (
	"regexp"
	"strings"
)

// Action is one discrete command from the peer-defined vocabulary.
type Action string

const (
	// Nil is the neutral no-op action, the universal safe fallback.
	Nil Action = "ACTION_NIL"

	Up     Action = "ACTION_UP"
	Down   Action = "ACTION_DOWN"
	Left   Action = "ACTION_LEFT"
	Right  Action = "ACTION_RIGHT"
	Use    Action = "ACTION_USE"
	Escape Action = "ACTION_ESCAPE"
)

// Vocabulary lists every action the peer defines, in a stable order.
var Vocabulary = []Action{Nil, Up, Down, Left, Right, Use, Escape}

// structuredPattern matches explicit declarations such as
// "ACTION: ACTION_LEFT" in otherwise unparseable output.
var structuredPattern = regexp.MustCompile(`(?i)ACTION:\s*(ACTION_\w+)`)

// Parse extracts one action from free text.
//
// Two tiers: a case-insensitive substring search for each legal token in
// the order supplied (the caller controls tie-break priority), then a
// structured "ACTION: ACTION_X" pattern accepted only when the captured
// token is legal. When both fail, Parse returns Nil and parsed=false so
// callers can surface the unparsed output.
func Parse(text string, legal []Action) (action Action, parsed bool) {
	upper := strings.ToUpper(text)

	for _, candidate := range legal {
		if strings.Contains(upper, string(candidate)) {
			return candidate, true
		}
	}

	if m := structuredPattern.FindStringSubmatch(text); m != nil {
		token := Action(strings.ToUpper(m[1]))
		for _, candidate := range legal {
			if candidate == token {
				return token, true
			}
		}
	}

	return Nil, false
}

// FromStrings converts the peer's availableActions list into typed
// actions, dropping tokens outside the vocabulary.
func FromStrings(names []string) []Action {
	out := make([]Action, 0, len(names))
	for _, name := range names {
		token := Action(strings.ToUpper(strings.TrimSpace(name)))
		for _, known := range Vocabulary {
			if known == token {
				out = append(out, token)
				break
			}
		}
	}
	return out
}

// Strings renders actions for prompt interpolation.
func Strings(list []Action) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = string(a)
	}
	return out
}
