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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gridpilot",
	Short: "Relay between a real-time game simulation and an LLM decision backend",
	Long: `GridPilot sits between a hard-real-time arcade-game simulation and a
slow LLM decision backend. Every simulation tick is answered immediately
from a cached action while decisions refresh that cache asynchronously
under admission control.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gridpilot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridpilot %s\n", version)
	},
}

func main() {
	rootCmd.AddCommand(versionCmd, serveCmd, spectateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
