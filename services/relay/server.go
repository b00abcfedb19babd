// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/GridPilot/services/relay/channel"
	"github.com/AleutianAI/GridPilot/services/relay/events"
	"github.com/AleutianAI/GridPilot/services/relay/gameconfig"
	"github.com/AleutianAI/GridPilot/services/relay/telemetry"
)

// Server accepts game peer connections and runs one relay per
// connection.
type Server struct {
	resolver *gameconfig.Resolver
	invoker  Decider
	feed     events.Broadcaster
	metrics  *telemetry.Metrics

	mu     sync.Mutex
	relays map[string]*Relay

	boundAddr atomic.Value
}

// NewServer wires the peer-facing TCP server. feed and metrics may be
// nil.
func NewServer(resolver *gameconfig.Resolver, invoker Decider, feed events.Broadcaster, metrics *telemetry.Metrics) *Server {
	if feed == nil {
		feed = events.NopBroadcaster{}
	}
	return &Server{
		resolver: resolver,
		invoker:  invoker,
		feed:     feed,
		metrics:  metrics,
		relays:   make(map[string]*Relay),
	}
}

// Serve listens on the configured peer address and accepts until ctx
// is canceled. Each accepted connection gets its own session and
// relay.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.resolver.Server().PeerListen
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.boundAddr.Store(listener.Addr().String())
	slog.Info("Relay listening for game peers", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.closeAll()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	server := s.resolver.Server()
	defaults := s.resolver.Defaults()

	session := NewSession(server.Game, defaults.Backend, defaults.InvokeInterval())
	ch := channel.New(conn)

	relay := New(ctx, session, ch, s.resolver, s.invoker, s.feed, s.metrics, s.release)

	s.mu.Lock()
	s.relays[session.ID] = relay
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Add(ctx, 1)
	}
	slog.Info("Game peer connected", "session_id", session.ID,
		"remote", ch.RemoteAddr(), "game", session.GameID)

	relay.Run()
}

// release drops a finished relay from the registry. Called from the
// relay's teardown path.
func (s *Server) release(r *Relay) {
	s.mu.Lock()
	_, tracked := s.relays[r.session.ID]
	delete(s.relays, r.session.ID)
	s.mu.Unlock()

	if tracked && s.metrics != nil {
		s.metrics.SessionsActive.Add(context.Background(), -1)
	}
}

// closeAll tears down every live relay, used on server shutdown.
func (s *Server) closeAll() {
	s.mu.Lock()
	live := make([]*Relay, 0, len(s.relays))
	for _, r := range s.relays {
		live = append(live, r)
	}
	s.mu.Unlock()

	for _, r := range live {
		r.teardown()
	}
}

// BoundAddr returns the address the listener actually bound, useful
// when the configuration asked for an ephemeral port. Empty until
// Serve has started listening.
func (s *Server) BoundAddr() string {
	if addr, ok := s.boundAddr.Load().(string); ok {
		return addr
	}
	return ""
}

// Summaries snapshots every live session for the observability API.
func (s *Server) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.relays))
	for _, r := range s.relays {
		out = append(out, r.session.Summarize())
	}
	return out
}
