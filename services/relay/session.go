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
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/GridPilot/services/relay/actions"
)

// State tags where a session is in its lifecycle.
type State int

const (
	// StateIdle means no peer has spoken yet.
	StateIdle State = iota

	// StateConnecting means the connection is up but START has not
	// arrived.
	StateConnecting

	// StateActive means the session is serving ticks.
	StateActive

	// StateClosed is terminal; the session is discarded.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// admitReason explains why an ACT tick did not launch an invocation.
type admitReason string

const (
	admitOK       admitReason = ""
	admitInFlight admitReason = "in_flight"
	admitInterval admitReason = "interval"
	admitClosed   admitReason = "closed"
)

// Session is the mutable per-connection record: the cached action,
// the in-flight flag, the level counter, and the generation guard
// that keeps stale invocation results from committing.
//
// The relay's dispatch path and the invoker's completion goroutine
// both touch this state, so it is guarded by a mutex rather than the
// single-threaded ownership an event loop would give.
type Session struct {
	ID        string
	GameID    string
	BackendID string
	StartedAt time.Time

	mu           sync.Mutex
	state        State
	level        int
	cachedAction actions.Action
	inFlight     bool
	generation   uint64
	limiter      *rate.Limiter
	ticks        int64
	levelsPlayed int
}

// NewSession creates a session in StateConnecting with the neutral
// action cached and the invocation limiter primed so the first ACT
// may invoke immediately.
func NewSession(gameID, backendID string, minInterval time.Duration) *Session {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Session{
		ID:           uuid.NewString(),
		GameID:       gameID,
		BackendID:    backendID,
		StartedAt:    time.Now(),
		state:        StateConnecting,
		cachedAction: actions.Nil,
		limiter:      rate.NewLimiter(limit, 1),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate moves CONNECTING → ACTIVE. A no-op in any other state.
func (s *Session) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateActive
	}
}

// Close moves the session to StateClosed and bumps the generation so
// any in-flight invocation result is dropped at commit time. Returns
// false if the session was already closed.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	s.generation++
	return true
}

// CachedAction returns the action served to the next ACT tick.
func (s *Session) CachedAction() actions.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedAction
}

// Level returns the current level index.
func (s *Session) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// RecordTick counts one served ACT tick.
func (s *Session) RecordTick() {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

// Admit decides whether an ACT tick may launch a decision invocation.
// At most one invocation is in flight, and starts are spaced at least
// the configured minimum interval apart. On success the in-flight
// flag is taken and the caller must pair it with EndInvocation.
func (s *Session) Admit() (generation uint64, reason admitReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return 0, admitClosed
	}
	if s.inFlight {
		return 0, admitInFlight
	}
	if !s.limiter.Allow() {
		return 0, admitInterval
	}
	s.inFlight = true
	return s.generation, admitOK
}

// EndInvocation releases the in-flight flag taken by Admit.
func (s *Session) EndInvocation() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Commit installs a decision result into the cache, unless the
// session has moved on since the invocation launched: a level end or
// close bumps the generation, and stale results are dropped.
func (s *Session) Commit(generation uint64, action actions.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || generation != s.generation {
		return false
	}
	s.cachedAction = action
	return true
}

// EndLevel advances the level counter, resets the cached action to
// neutral, and bumps the generation so in-flight results from the
// finished level cannot commit. Returns the completed level index.
func (s *Session) EndLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := s.level
	s.level++
	s.levelsPlayed++
	s.cachedAction = actions.Nil
	s.generation++
	return completed
}

// Summary is the read model served by the observability API.
type Summary struct {
	ID           string    `json:"id"`
	GameID       string    `json:"gameId"`
	Backend      string    `json:"backend"`
	State        string    `json:"state"`
	Level        int       `json:"level"`
	LevelsPlayed int       `json:"levelsPlayed"`
	Ticks        int64     `json:"ticks"`
	CachedAction string    `json:"cachedAction"`
	StartedAt    time.Time `json:"startedAt"`
}

// Summarize snapshots the session for the API.
func (s *Session) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:           s.ID,
		GameID:       s.GameID,
		Backend:      s.BackendID,
		State:        s.state.String(),
		Level:        s.level,
		LevelsPlayed: s.levelsPlayed,
		Ticks:        s.ticks,
		CachedAction: string(s.cachedAction),
		StartedAt:    s.StartedAt,
	}
}

// Ticks returns the tick count served so far.
func (s *Session) Ticks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// LevelsPlayed returns how many levels have ended.
func (s *Session) LevelsPlayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelsPlayed
}
