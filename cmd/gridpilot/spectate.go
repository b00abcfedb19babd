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
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/GridPilot/pkg/ux"
)

var (
	spectateAddr string

	spectateCmd = &cobra.Command{
		Use:   "spectate",
		Short: "Watch a running relay's event feed in the terminal",
		Long: `Connects to the relay's spectator WebSocket and renders live tick,
reasoning, and level events until interrupted.`,
		RunE: runSpectate,
	}
)

func init() {
	spectateCmd.Flags().StringVar(&spectateAddr, "addr", "localhost:8080", "host:port of the relay's HTTP service")
}

func runSpectate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feedURL := url.URL{Scheme: "ws", Host: spectateAddr, Path: "/ws/events"}

	spinner := ux.NewSpinner(os.Stderr, "Connecting to "+feedURL.String())
	spinner.Start()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL.String(), nil)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("dial %s: %w", feedURL.String(), err)
	}
	defer conn.Close()

	fmt.Println(ux.Styles.Title.Render("Spectating " + spectateAddr))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	renderer := ux.NewFeedRenderer(os.Stdout)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed closed: %w", err)
		}
		renderer.Render(raw)
	}
}
