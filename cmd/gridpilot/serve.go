// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/GridPilot/pkg/logging"
	"github.com/AleutianAI/GridPilot/services/llm"
	"github.com/AleutianAI/GridPilot/services/relay"
	"github.com/AleutianAI/GridPilot/services/relay/decider"
	"github.com/AleutianAI/GridPilot/services/relay/events"
	"github.com/AleutianAI/GridPilot/services/relay/gameconfig"
	"github.com/AleutianAI/GridPilot/services/relay/telemetry"
)

var (
	configPath string
	logLevel   string
	logDir     string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the relay, the decision invoker, and the observability service",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "gridpilot.yaml", "path to the configuration file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&logDir, "log-dir", "", "directory for JSON log files (disabled when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		LogDir:  logDir,
		Service: "gridpilot",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("Telemetry shutdown error", "error", err)
		}
	}()

	resolver, err := gameconfig.NewResolver(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	metrics, err := telemetry.NewMetrics(otel.Meter("gridpilot.relay"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	hub := events.NewHub()
	registry := llm.NewRegistry()
	invoker := decider.NewInvoker(registry, hub, metrics)
	server := relay.NewServer(resolver, invoker, hub, metrics)
	router := relay.NewRouter(server, hub)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return resolver.Watch(ctx) })
	group.Go(func() error { return server.Serve(ctx) })
	group.Go(func() error {
		return relay.ServeHTTP(ctx, resolver.Server().HTTPListen, router)
	})

	slog.Info("GridPilot running", "config", configPath,
		"peer_listen", resolver.Server().PeerListen,
		"http_listen", resolver.Server().HTTPListen)

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("GridPilot stopped")
	return nil
}
