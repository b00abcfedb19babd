// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	router := gin.New()
	router.GET("/ws/events", hub.Handler())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// The subscriber registers before Handler blocks in its read loop;
	// wait for it so Broadcast has someone to reach.
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 5*time.Millisecond)
	return hub, conn
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	hub, conn := newTestFeed(t)

	sent := New("sess-1", TypeLevelResult, LevelResultData{Level: 2, GameScore: 7})
	hub.Broadcast(sent)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, TypeLevelResult, got.Type)
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub, _ := newTestFeed(t)

	// Flood well past the subscriber buffer without reading.
	for i := 0; i < subscriberBuffer*3; i++ {
		hub.Broadcast(New("sess-1", TypeTick, nil))
	}

	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestNew_StampsEnvelope(t *testing.T) {
	before := time.Now().UnixMilli()
	ev := New("sess-9", TypeReasoning, ReasoningData{Action: "ACTION_UP"})
	after := time.Now().UnixMilli()

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "sess-9", ev.SessionID)
	assert.GreaterOrEqual(t, ev.CreatedAt, before)
	assert.LessOrEqual(t, ev.CreatedAt, after)
}
