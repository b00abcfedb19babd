// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package protocol implements the newline-framed wire protocol spoken
// with the simulation peer: frame encoding, reply tokens, and phase
// classification of incoming payloads.
package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

// Reply tokens written back to the peer.
const (
	TokenStartDone  = "START_DONE"
	TokenInitDone   = "INIT_DONE#BOTH"
	TokenInitFailed = "INIT_FAILED"
	TokenEndDone    = "END_DONE"
	TokenEndFailed  = "END_FAILED"

	// ImageSuffix on an action reply asks the peer to also emit a
	// visual frame for the spectator stream.
	ImageSuffix = "#IMAGE"
)

// Control tokens the peer sends without a structured payload.
const (
	controlStart  = "START"
	controlFinish = "FINISH"
)

// FrameSeparator joins the correlation id and the payload. Only the
// first occurrence is structural; payloads may contain it freely.
const FrameSeparator = "#"

// ParseFrame splits one complete frame (newline already stripped) into
// its correlation id and payload. Everything after the first separator
// belongs to the payload, including further separators.
func ParseFrame(line string) (id, payload string, err error) {
	idx := strings.Index(line, FrameSeparator)
	if idx < 0 {
		return "", "", fmt.Errorf("frame has no separator: %q", truncate(line, 64))
	}
	if idx == 0 {
		return "", "", fmt.Errorf("frame has empty correlation id: %q", truncate(line, 64))
	}
	return line[:idx], line[idx+1:], nil
}

// EncodeFrame renders a complete outgoing frame including the
// terminating newline.
func EncodeFrame(id, text string) string {
	return id + FrameSeparator + text + "\n"
}

// Phase classifies a payload by its position in the session lifecycle.
type Phase int

const (
	// PhaseUnknown means the payload declared no recognizable phase.
	PhaseUnknown Phase = iota

	// PhaseStart is the bare START control token.
	PhaseStart

	// PhaseInit announces a new level starting.
	PhaseInit

	// PhaseAct is one simulation tick awaiting a command. Time-critical.
	PhaseAct

	// PhaseEnd announces a finished level.
	PhaseEnd

	// PhaseFinish is the bare FINISH control token closing the session.
	PhaseFinish
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseInit:
		return "init"
	case PhaseAct:
		return "act"
	case PhaseEnd:
		return "end"
	case PhaseFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// classifyPrefixBytes bounds how much of a payload the hot path inspects
// before falling back to a full scan. ACT payloads carry the phase
// marker near the front, so the prefix almost always decides.
const classifyPrefixBytes = 4096

var phaseMarker = regexp.MustCompile(`"phase"\s*:\s*"(INIT|ACT|END)"`)

// Classify determines the phase of one payload. Control tokens are
// matched exactly; structured payloads are searched for their phase
// marker in a bounded prefix first so classification cost does not grow
// with payload size, with a full scan only when the prefix is
// inconclusive.
func Classify(payload string) Phase {
	switch payload {
	case controlStart:
		return PhaseStart
	case controlFinish:
		return PhaseFinish
	}

	prefix := payload
	if len(prefix) > classifyPrefixBytes {
		prefix = prefix[:classifyPrefixBytes]
	}
	if p := matchPhase(prefix); p != PhaseUnknown {
		return p
	}
	if len(payload) > classifyPrefixBytes {
		return matchPhase(payload)
	}
	return PhaseUnknown
}

func matchPhase(s string) Phase {
	m := phaseMarker.FindStringSubmatch(s)
	if m == nil {
		return PhaseUnknown
	}
	switch m[1] {
	case "INIT":
		return PhaseInit
	case "ACT":
		return PhaseAct
	case "END":
		return PhaseEnd
	}
	return PhaseUnknown
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
