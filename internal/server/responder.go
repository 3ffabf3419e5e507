// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/remote"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

// Responder produces the assistant's turns for a chat.
type Responder interface {
	Respond(ctx context.Context, req remote.AIRequest) []model.Part
}

// EchoResponder answers by repeating the last user turn. A prompt of the
// form "/tool NAME ARGS" yields a tool call, its result and a closing turn.
type EchoResponder struct{}

// Respond implements Responder.
func (EchoResponder) Respond(_ context.Context, req remote.AIRequest) []model.Part {
	prompt := ""
	if last := req.Context.Last(); last != nil {
		prompt = strings.TrimSpace(last.Text())
	}

	if rest, ok := strings.CutPrefix(prompt, "/tool "); ok {
		name, args, _ := strings.Cut(strings.TrimSpace(rest), " ")
		payload, _ := json.Marshal(map[string]string{"input": args})
		return []model.Part{
			model.NewPart(model.PositionAI, model.ToolCall(name, string(payload))),
			model.NewPart(model.PositionTool, model.ToolResult(name, string(payload))),
			model.NewPart(model.PositionAI, model.Text("Ran "+name+".")),
		}
	}

	reply := "Echo: " + prompt
	if req.Config != nil {
		for _, setting := range req.Config.Settings {
			if setting.Kind == database.SettingPrePrompt && setting.Prompt != nil {
				reply = setting.Prompt.Text() + " " + reply
			}
		}
	}
	return []model.Part{model.NewPart(model.PositionAI, model.Text(reply))}
}

// =============================================================================
// STREAMING
// =============================================================================

var streamTokens atomic.Uint64

// streamEvents splits turns into the events a streaming reply is pushed as.
// Each turn opens with a Start event and continues word by word.
func streamEvents(chat int, parts []model.Part) []stream.Event {
	var events []stream.Event
	for _, p := range parts {
		first := true
		for _, d := range p.Data {
			chunks := []model.Data{d}
			if d.IsText() {
				chunks = chunks[:0]
				for _, w := range splitWords(d.Text) {
					chunks = append(chunks, model.Text(w))
				}
			}
			for _, c := range chunks {
				token := streamTokens.Add(1)
				if first {
					events = append(events, stream.Start(chat, token, p.Position, c))
					first = false
				} else {
					events = append(events, stream.Continue(chat, token, c))
				}
			}
		}
	}
	return events
}

// splitWords keeps separators attached so chunks concatenate back to s.
func splitWords(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s[1:], ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}

// publishStream pushes events to pseudonym, pausing the stream delay
// between them.
func (s *Server) publishStream(ctx context.Context, pseudonym string, events []stream.Event) {
	delay := time.Duration(s.streamDelay.Load())
	for _, ev := range events {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		s.hub.Publish(pseudonym, ev)
	}
}
