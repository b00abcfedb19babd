// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that
// cross trust boundaries.
//
// Game ids come from configuration files and URL paths; backend ids
// come from configuration and select which provider the relay spends
// money on. Validating their shape up front keeps malformed values
// out of logs, metrics labels, and provider requests.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// gameIDPattern matches lowercase slugs like "thunder-lizard".
var gameIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// backendSegment matches one segment of a backend id: a model name
// like "qwen3:8b" or a namespace like "openai".
var backendSegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// ValidateGameID validates a game identifier slug.
func ValidateGameID(id string) error {
	if id == "" {
		return fmt.Errorf("game id cannot be empty")
	}
	if !gameIDPattern.MatchString(id) {
		return fmt.Errorf("invalid game id %q (lowercase slug, max 64 chars)", id)
	}
	return nil
}

// ValidateBackendID validates a decision backend identifier. Bare ids
// ("qwen3:8b") have one segment; namespaced ids ("openai/gpt-4o-mini")
// have exactly two, separated by a single '/'.
func ValidateBackendID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("backend id cannot be empty")
	}
	segments := strings.Split(id, "/")
	if len(segments) > 2 {
		return fmt.Errorf("invalid backend id %q: at most one namespace separator", id)
	}
	for _, segment := range segments {
		if !backendSegment.MatchString(segment) {
			return fmt.Errorf("invalid backend id %q: bad segment %q", id, segment)
		}
	}
	return nil
}
