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
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/GridPilot/services/relay/gameconfig"
)

const serverTestConfig = `
server:
  peer_listen: "127.0.0.1:0"
  http_listen: "127.0.0.1:0"
  game: "thunder-lizard"
defaults:
  backend: "gemma3:4b"
games:
  thunder-lizard:
    game_context: "Dodge the lizard."
`

func newTestServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gridpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(serverTestConfig), 0o644))
	resolver, err := gameconfig.NewResolver(path)
	require.NoError(t, err)

	srv := NewServer(resolver, &scriptedDecider{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server never stopped")
		}
	})

	require.Eventually(t, func() bool { return srv.BoundAddr() != "" },
		2*time.Second, 5*time.Millisecond)
	return srv, cancel
}

func TestServer_AcceptsAndRelays(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, err := net.Dial("tcp", srv.BoundAddr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("1#START\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "1#START_DONE\n", line)

	require.Eventually(t, func() bool { return len(srv.Summaries()) == 1 },
		2*time.Second, 5*time.Millisecond)
	summary := srv.Summaries()[0]
	assert.Equal(t, "thunder-lizard", summary.GameID)
	assert.Equal(t, "gemma3:4b", summary.Backend)
}

func TestServer_ReleasesSessionOnDisconnect(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, err := net.Dial("tcp", srv.BoundAddr())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(srv.Summaries()) == 1 },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return len(srv.Summaries()) == 0 },
		2*time.Second, 5*time.Millisecond)
}

func TestRouter_HealthAndSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, _ := newTestServer(t)
	router := NewRouter(srv, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions"`)
}
