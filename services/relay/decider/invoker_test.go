// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/GridPilot/services/llm"
	"github.com/AleutianAI/GridPilot/services/relay/datatypes"
	"github.com/AleutianAI/GridPilot/services/relay/events"
)

type stubClient struct {
	model string
	reply string
	err   error

	mu       sync.Mutex
	messages []llm.Message
	params   llm.GenerationParams
}

func (s *stubClient) Chat(_ context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	s.mu.Lock()
	s.messages = messages
	s.params = params
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubClient) Model() string { return s.model }

type stubSource struct {
	client *stubClient
	err    error
}

func (s stubSource) ForModel(string) (llm.LLMClient, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

type captureFeed struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureFeed) Broadcast(ev events.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureFeed) byType(t events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() datatypes.ResolvedPromptConfig {
	return datatypes.ResolvedPromptConfig{
		GameID:            "thunder-lizard",
		BackendID:         "gemma3:4b",
		GlobalInstruction: "You are the avatar's pilot.",
		GameContext:       "Dodge the lizard.",
	}
}

func testSnapshot() datatypes.StateSnapshot {
	return datatypes.StateSnapshot{
		Phase:            "ACT",
		GameScore:        10,
		GameTick:         41,
		AvatarPosition:   []float64{3, 4},
		AvailableActions: []string{"ACTION_UP", "ACTION_DOWN", "ACTION_USE"},
	}
}

func TestInvoker_Decide_ParsesAction(t *testing.T) {
	client := &stubClient{model: "gemma3:4b", reply: "I will move up. ACTION_UP"}
	feed := &captureFeed{}
	inv := NewInvoker(stubSource{client: client}, feed, nil)

	result, err := inv.Decide(context.Background(), "sess-1", testConfig(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "ACTION_UP", result.Action)
	assert.True(t, result.Parsed)
	assert.Equal(t, "I will move up. ACTION_UP", result.RawOutput)

	// The composed prompt reached the backend as system + user segments.
	require.Len(t, client.messages, 2)
	assert.Equal(t, "system", client.messages[0].Role)
	assert.Contains(t, client.messages[0].Content, "avatar's pilot")
	assert.Equal(t, "user", client.messages[1].Role)
	assert.Contains(t, client.messages[1].Content, "Position: (3, 4)")

	reasoning := feed.byType(events.TypeReasoning)
	require.Len(t, reasoning, 1)
	assert.Equal(t, "sess-1", reasoning[0].SessionID)
}

func TestInvoker_Decide_UnparsedFallsBackToNil(t *testing.T) {
	client := &stubClient{model: "gemma3:4b", reply: "hmm, not sure what to do"}
	inv := NewInvoker(stubSource{client: client}, nil, nil)

	result, err := inv.Decide(context.Background(), "sess-1", testConfig(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "ACTION_NIL", result.Action)
	assert.False(t, result.Parsed)
}

func TestInvoker_Decide_IllegalActionRejected(t *testing.T) {
	// ACTION_LEFT is a known token but not in this snapshot's legal set.
	client := &stubClient{model: "gemma3:4b", reply: "ACTION: ACTION_LEFT"}
	inv := NewInvoker(stubSource{client: client}, nil, nil)

	result, err := inv.Decide(context.Background(), "sess-1", testConfig(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "ACTION_NIL", result.Action)
	assert.False(t, result.Parsed)
}

func TestInvoker_Decide_BackendErrorIsReported(t *testing.T) {
	client := &stubClient{model: "gemma3:4b", err: errors.New("connection refused")}
	feed := &captureFeed{}
	inv := NewInvoker(stubSource{client: client}, feed, nil)

	_, err := inv.Decide(context.Background(), "sess-1", testConfig(), testSnapshot())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "gemma3:4b"))

	failures := feed.byType(events.TypeInvocationError)
	require.Len(t, failures, 1)
	data, ok := failures[0].Data.(events.InvocationErrorData)
	require.True(t, ok)
	assert.Equal(t, "gemma3:4b", data.Backend)
	assert.Contains(t, data.Error, "connection refused")
}

func TestInvoker_Decide_UnknownBackend(t *testing.T) {
	feed := &captureFeed{}
	inv := NewInvoker(stubSource{err: errors.New("no provider")}, feed, nil)

	_, err := inv.Decide(context.Background(), "sess-1", testConfig(), testSnapshot())
	require.Error(t, err)
	assert.Len(t, feed.byType(events.TypeInvocationError), 1)
}

func TestInvoker_Decide_GenerationParams(t *testing.T) {
	temp := float32(0.4)
	cfg := testConfig()
	cfg.Temperature = &temp
	cfg.MaxOutputTokens = 256

	client := &stubClient{model: "gemma3:4b", reply: "ACTION_USE"}
	inv := NewInvoker(stubSource{client: client}, nil, nil)

	_, err := inv.Decide(context.Background(), "sess-1", cfg, testSnapshot())
	require.NoError(t, err)

	require.NotNil(t, client.params.Temperature)
	assert.InDelta(t, 0.4, float64(*client.params.Temperature), 1e-6)
	require.NotNil(t, client.params.MaxTokens)
	assert.Equal(t, 256, *client.params.MaxTokens)
}
