// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/GridPilot/services/relay/events"
)

// feedEnvelope mirrors events.Event on the receiving side, with the
// payload kept raw until the type is known.
type feedEnvelope struct {
	SessionID string          `json:"sessionId"`
	Type      events.Type     `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// FeedRenderer renders relay spectator events as styled terminal
// lines. It only renders; reading the WebSocket belongs to the
// caller.
type FeedRenderer struct {
	out io.Writer
}

// NewFeedRenderer creates a renderer writing to out.
func NewFeedRenderer(out io.Writer) *FeedRenderer {
	return &FeedRenderer{out: out}
}

// Render decodes one raw event from the feed and writes its styled
// line. Unknown or undecodable events render as muted raw JSON so
// nothing on the feed is silently swallowed.
func (r *FeedRenderer) Render(raw []byte) {
	var env feedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Fprintln(r.out, Styles.Muted.Render(string(raw)))
		return
	}

	switch env.Type {
	case events.TypeTick:
		var data events.TickData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Fprintf(r.out, "%s tick %d · score %s · %s\n",
			Styles.Muted.Render("·"),
			data.Snapshot.GameTick,
			formatScore(data.Snapshot.GameScore),
			Styles.Subtitle.Render(data.Action))
		return

	case events.TypeReasoning:
		var data events.ReasoningData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		status := Styles.Success.Render(data.Action)
		if !data.Parsed {
			status = Styles.Warning.Render(data.Action + " (unparsed)")
		}
		fmt.Fprintf(r.out, "%s %s · %dms · %s\n",
			Styles.Highlight.Render("»"), status, data.ElapsedMS,
			Styles.Muted.Render(oneLine(data.RawOutput, 120)))
		return

	case events.TypeInvocationError:
		var data events.InvocationErrorData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Fprintf(r.out, "%s backend %s: %s\n",
			Styles.Error.Render("✗"), data.Backend, Styles.Error.Render(data.Error))
		return

	case events.TypeLevelResult:
		var data events.LevelResultData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Fprintln(r.out, Styles.Box.Render(fmt.Sprintf(
			"Level %d finished · winner %s · score %s · tick %d",
			data.Level, data.GameWinner, formatScore(data.GameScore), data.GameTick)))
		return

	case events.TypeSessionEnd:
		var data events.SessionEndData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Fprintln(r.out, Styles.Title.Render(fmt.Sprintf(
			"Session over · %s on %s · %d levels · %d ticks",
			data.GameID, data.Backend, data.LevelsPlayed, data.TicksServed)))
		return
	}

	fmt.Fprintln(r.out, Styles.Muted.Render(string(raw)))
}

func formatScore(score float64) string {
	s := fmt.Sprintf("%.2f", score)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
