// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGameID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple slug", "zelda", false},
		{"slug with hyphen", "thunder-lizard", false},
		{"slug with digits", "pacman2", false},
		{"empty", "", true},
		{"uppercase", "Zelda", true},
		{"leading hyphen", "-zelda", true},
		{"path traversal", "../etc", true},
		{"spaces", "thunder lizard", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGameID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBackendID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"bare ollama model", "qwen3:8b", false},
		{"bare with dots", "gemma3.1", false},
		{"namespaced", "openai/gpt-4o-mini", false},
		{"anthropic namespaced", "anthropic/claude-sonnet", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"double separator", "a/b/c", true},
		{"empty segment", "openai/", true},
		{"shell metacharacters", "qwen;rm -rf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBackendID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
