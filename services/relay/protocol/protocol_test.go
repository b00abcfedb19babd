// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantID      string
		wantPayload string
		wantErr     bool
	}{
		{
			name:        "simple frame",
			line:        "42#START",
			wantID:      "42",
			wantPayload: "START",
		},
		{
			name:        "payload with embedded separators",
			line:        `7#{"phase":"ACT","note":"a#b#c"}`,
			wantID:      "7",
			wantPayload: `{"phase":"ACT","note":"a#b#c"}`,
		},
		{
			name:        "empty payload",
			line:        "9#",
			wantID:      "9",
			wantPayload: "",
		},
		{
			name:    "no separator",
			line:    "not a frame",
			wantErr: true,
		},
		{
			name:    "empty correlation id",
			line:    "#payload",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, payload, err := ParseFrame(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantPayload, payload)
		})
	}
}

func TestParseFrame_RoundTrip(t *testing.T) {
	payload := `{"phase":"ACT","data":"x#y#z"}`
	frame := EncodeFrame("13", payload)
	require.True(t, strings.HasSuffix(frame, "\n"))

	id, got, err := ParseFrame(strings.TrimSuffix(frame, "\n"))
	require.NoError(t, err)
	assert.Equal(t, "13", id)
	assert.Equal(t, payload, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Phase
	}{
		{"start token", "START", PhaseStart},
		{"finish token", "FINISH", PhaseFinish},
		{"init payload", `{"phase":"INIT","gameTick":0}`, PhaseInit},
		{"act payload", `{"phase":"ACT","gameTick":7}`, PhaseAct},
		{"end payload", `{"phase":"END","gameWinner":"PLAYER_WINS"}`, PhaseEnd},
		{"spaced marker", `{ "phase" : "ACT" }`, PhaseAct},
		{"unknown phase value", `{"phase":"PAUSE"}`, PhaseUnknown},
		{"garbage", "not json at all", PhaseUnknown},
		{"empty", "", PhaseUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.payload))
		})
	}
}

func TestClassify_MarkerBeyondPrefix(t *testing.T) {
	// A payload whose phase marker sits past the prefix window must
	// still classify via the full scan.
	filler := strings.Repeat("x", classifyPrefixBytes+100)
	payload := `{"data":"` + filler + `","phase":"END"}`
	assert.Equal(t, PhaseEnd, Classify(payload))
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseStart, "start"},
		{PhaseInit, "init"},
		{PhaseAct, "act"},
		{PhaseEnd, "end"},
		{PhaseFinish, "finish"},
		{PhaseUnknown, "unknown"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phase.String())
		})
	}
}
