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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/GridPilot/services/relay/events"
	"github.com/AleutianAI/GridPilot/services/relay/telemetry"
)

// NewRouter builds the observability HTTP surface: health, live
// session summaries, the spectator event feed, and Prometheus
// metrics.
func NewRouter(server *Server, hub *events.Hub) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("gridpilot-relay"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/v1/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": server.Summaries()})
	})

	if hub != nil {
		router.GET("/ws/events", hub.Handler())
	}

	if handler := telemetry.MetricsHandler(); handler != nil {
		router.GET("/metrics", gin.WrapH(handler))
	}

	return router
}

// ServeHTTP runs the observability service until ctx is canceled,
// then drains with a short grace period.
func ServeHTTP(ctx context.Context, addr string, router *gin.Engine) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown error", "error", err)
		}
	}()

	slog.Info("Observability HTTP service listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
