// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package channel provides the newline-framed message channel between
// the relay and a game connection.
//
// A Channel owns one net.Conn. Inbound bytes are split into frames on
// '\n' and parsed as "<correlationId>#<payload>"; only the first '#'
// is structural, so payloads may contain '#' freely. Outbound frames
// are serialized under a write lock so concurrent senders never
// interleave bytes.
package channel

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/GridPilot/services/relay/protocol"
)

// maxFrameBytes bounds a single inbound frame. State snapshots carry
// base64 screen captures, so frames can run to several megabytes.
const maxFrameBytes = 16 * 1024 * 1024

// Handlers receives channel lifecycle callbacks.
//
// OnFrame is called from the channel's read goroutine, one frame at a
// time, in arrival order. OnClose is called exactly once, after the
// last OnFrame, with the error that ended the read loop (nil on clean
// EOF or local Close).
type Handlers struct {
	OnFrame func(correlationID, payload string)
	OnClose func(err error)
}

// Channel is a framed connection to a single game peer.
//
// Thread Safety: Send and Close are safe for concurrent use. Start
// must be called once, after handlers are ready, before any frame
// can be observed.
type Channel struct {
	conn net.Conn

	writeMu sync.Mutex
	writer  *bufio.Writer

	closeOnce sync.Once
	closed    atomic.Bool

	framesRead    atomic.Int64
	framesWritten atomic.Int64
}

// New wraps conn in a Channel. The channel does not read until Start
// is called.
func New(conn net.Conn) *Channel {
	return &Channel{
		conn:   conn,
		writer: bufio.NewWriter(conn),
	}
}

// Start launches the read loop. Frames arriving before Start are
// buffered by the kernel, not lost; registering handlers first means
// no frame can race past an unready consumer.
func (c *Channel) Start(h Handlers) {
	go c.readLoop(h)
}

func (c *Channel) readLoop(h Handlers) {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		c.framesRead.Add(1)

		id, payload, err := protocol.ParseFrame(line)
		if err != nil {
			slog.Warn("Dropping malformed frame", "remote", c.RemoteAddr(), "error", err)
			continue
		}
		if h.OnFrame != nil {
			h.OnFrame(id, payload)
		}
	}

	err := scanner.Err()
	if c.closed.Load() {
		// Local Close tears down the conn under the reader; the
		// resulting error is expected noise.
		err = nil
	}
	c.teardown()
	if h.OnClose != nil {
		h.OnClose(err)
	}
}

// Send writes one frame and flushes it. Sending on a closed channel
// is a logged no-op; the game is gone and there is nobody to tell.
func (c *Channel) Send(correlationID, payload string) error {
	if c.closed.Load() {
		slog.Debug("Dropping frame on closed channel", "correlation_id", correlationID)
		return nil
	}

	frame := protocol.EncodeFrame(correlationID, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.WriteString(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	c.framesWritten.Add(1)
	return nil
}

// Close tears the channel down. Safe to call more than once and
// concurrently with Send.
func (c *Channel) Close() {
	c.teardown()
}

func (c *Channel) teardown() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing game connection", "error", err)
		}
	})
}

// Closed reports whether teardown has run.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// RemoteAddr returns the peer address for logging.
func (c *Channel) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Stats returns counters of frames read and written so far.
func (c *Channel) Stats() (read, written int64) {
	return c.framesRead.Load(), c.framesWritten.Load()
}
