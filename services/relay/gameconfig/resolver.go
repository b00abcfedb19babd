// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gameconfig loads and resolves the layered prompt configuration.
// A single YAML file carries server settings plus per-game prompt packs;
// Resolve flattens the layers for one (game, backend, level) triple. The
// file is re-read on change so INIT re-resolution between levels picks up
// edits without a restart.
package gameconfig

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/GridPilot/pkg/validation"
	"github.com/AleutianAI/GridPilot/services/relay/datatypes"
)

// File is the top-level YAML document.
type File struct {
	Server   ServerConfig        `yaml:"server" validate:"required"`
	Defaults Defaults            `yaml:"defaults" validate:"required"`
	Games    map[string]GamePack `yaml:"games" validate:"dive"`
}

// ServerConfig holds the listen addresses and the game this
// deployment serves. The wire protocol carries no game identifier, so
// the listener is bound to one game at a time.
type ServerConfig struct {
	// PeerListen is the TCP address the simulation peer connects to.
	PeerListen string `yaml:"peer_listen" validate:"required,hostname_port"`

	// HTTPListen is the address of the observability HTTP service.
	HTTPListen string `yaml:"http_listen" validate:"required,hostname_port"`

	// Game names the game pack sessions on this listener resolve
	// against. May be empty, in which case sessions run on defaults.
	Game string `yaml:"game"`
}

// Defaults apply when a game pack leaves a setting unset.
type Defaults struct {
	Backend             string   `yaml:"backend" validate:"required"`
	MaxOutputTokens     int      `yaml:"max_output_tokens" validate:"gte=1"`
	Temperature         *float32 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MinInvokeIntervalMS int      `yaml:"min_invoke_interval_ms" validate:"gte=0"`
}

// InvokeInterval returns the admission-control floor between decision
// invocation starts.
func (d Defaults) InvokeInterval() time.Duration {
	return time.Duration(d.MinInvokeIntervalMS) * time.Millisecond
}

// GamePack is the per-game prompt configuration.
type GamePack struct {
	// GlobalInstruction is the system-level identity layer.
	GlobalInstruction string `yaml:"global_instruction"`

	// GameContext is the default game context layer.
	GameContext string `yaml:"game_context"`

	// BackendContexts overrides GameContext for specific backends.
	BackendContexts map[string]string `yaml:"backend_contexts"`

	// Levels holds per-level context layers, indexed by level. A level
	// past the end reuses the last entry.
	Levels []string `yaml:"levels"`

	MaxOutputTokens int      `yaml:"max_output_tokens" validate:"omitempty,gte=1"`
	Temperature     *float32 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// Resolver owns the parsed configuration and swaps it atomically on
// reload, so Resolve is safe to call from any goroutine.
type Resolver struct {
	path     string
	current  atomic.Pointer[File]
	validate *validator.Validate
}

// NewResolver loads and validates the file at path.
func NewResolver(path string) (*Resolver, error) {
	r := &Resolver{
		path:     path,
		validate: validator.New(),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the file and swaps the active configuration. On any
// error the previous configuration stays active.
func (r *Resolver) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", r.path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", r.path, err)
	}
	applyFileDefaults(&file)
	if err := r.validate.Struct(&file); err != nil {
		return fmt.Errorf("invalid config %s: %w", r.path, err)
	}
	if err := validation.ValidateBackendID(file.Defaults.Backend); err != nil {
		return fmt.Errorf("invalid config %s: %w", r.path, err)
	}
	for gameID := range file.Games {
		if err := validation.ValidateGameID(gameID); err != nil {
			return fmt.Errorf("invalid config %s: %w", r.path, err)
		}
	}

	r.current.Store(&file)
	return nil
}

// Server returns the active server settings.
func (r *Resolver) Server() ServerConfig {
	return r.current.Load().Server
}

// Defaults returns the active default settings.
func (r *Resolver) Defaults() Defaults {
	return r.current.Load().Defaults
}

// Resolve flattens the configuration layers for one (game, backend,
// level) triple. Unknown games resolve to defaults with empty layers;
// the relay still runs, the backend just gets no game-specific framing.
func (r *Resolver) Resolve(gameID, backendID string, level int) datatypes.ResolvedPromptConfig {
	file := r.current.Load()

	resolved := datatypes.ResolvedPromptConfig{
		GameID:          gameID,
		BackendID:       backendID,
		MaxOutputTokens: file.Defaults.MaxOutputTokens,
		Temperature:     file.Defaults.Temperature,
	}
	if backendID == "" {
		resolved.BackendID = file.Defaults.Backend
	}

	pack, ok := file.Games[gameID]
	if !ok {
		return resolved
	}

	resolved.GlobalInstruction = pack.GlobalInstruction
	resolved.GameContext = pack.GameContext
	if ctx, ok := pack.BackendContexts[resolved.BackendID]; ok {
		resolved.GameContext = ctx
	}
	if len(pack.Levels) > 0 {
		idx := level
		if idx < 0 {
			idx = 0
		}
		if idx >= len(pack.Levels) {
			idx = len(pack.Levels) - 1
		}
		resolved.LevelContext = pack.Levels[idx]
	}
	if pack.MaxOutputTokens > 0 {
		resolved.MaxOutputTokens = pack.MaxOutputTokens
	}
	if pack.Temperature != nil {
		resolved.Temperature = pack.Temperature
	}
	return resolved
}

func applyFileDefaults(file *File) {
	if file.Defaults.MaxOutputTokens == 0 {
		file.Defaults.MaxOutputTokens = 128
	}
	if file.Defaults.MinInvokeIntervalMS == 0 {
		file.Defaults.MinInvokeIntervalMS = 400
	}
}
