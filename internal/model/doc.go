// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts.
//
// A transcript (Context) is an ordered list of turns (Part). Each turn has a
// Position (user, ai, system, tool) and a list of fragments (Data). Streamed
// output is folded into the last turn with Part.Merge.
//
// # Key Types
//
//   - Context: Whole transcript of a chat
//   - Part: One turn with a position and fragments
//   - Data: Text or structured fragment (tool call, tool result, image)
//   - Position: Turn producer enumeration
//
// # Usage
//
//	ctx := model.NewContext(model.NewUserPart("Hello!"))
//	reply := model.NewPart(model.PositionAI, model.Text("Hi"))
//	reply.Merge(model.Text(" there"))
//	ctx.Add(reply)
package model
