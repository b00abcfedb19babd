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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// subscriberBuffer bounds the per-spectator queue. A spectator that
// falls this far behind gets dropped rather than stalling the relay.
const subscriberBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
}

type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

// Hub fans relay events out to WebSocket spectators.
//
// Broadcast never blocks the caller: each subscriber has a bounded
// queue and slow consumers are disconnected. The zero value is not
// usable; create hubs with NewHub.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// Broadcast implements the Broadcaster interface.
func (h *Hub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to marshal event for broadcast", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.out <- payload:
		default:
			// Queue full: the spectator is too slow, cut it loose.
			delete(h.subscribers, sub)
			close(sub.out)
			slog.Info("Dropping slow event subscriber")
		}
	}
}

// SubscriberCount reports the number of connected spectators.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Handler upgrades an HTTP request to a WebSocket subscription and
// streams events until the client disconnects or falls behind.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade event feed websocket", "error", err)
			return
		}
		slog.Info("Event feed spectator connected", "remote", conn.RemoteAddr().String())

		sub := &subscriber{
			conn: conn,
			out:  make(chan []byte, subscriberBuffer),
		}
		h.mu.Lock()
		h.subscribers[sub] = struct{}{}
		h.mu.Unlock()

		go h.writeLoop(sub)
		h.readLoop(sub)
	}
}

// writeLoop drains the subscriber queue onto the wire.
func (h *Hub) writeLoop(sub *subscriber) {
	for payload := range sub.out {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(sub)
			return
		}
	}
	// Channel closed by Broadcast: slow consumer.
	_ = sub.conn.Close()
}

// readLoop consumes (and discards) client frames so pings and close
// frames are processed, removing the subscriber on error.
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.remove(sub)
			return
		}
	}
}

// remove unregisters a subscriber once; safe to call from both loops.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.out)
	}
	h.mu.Unlock()
	_ = sub.conn.Close()
}
