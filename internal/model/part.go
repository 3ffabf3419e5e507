// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts.
package model

import (
	"strings"
	"time"
)

// =============================================================================
// POSITION TYPE
// =============================================================================

// Position identifies who produced a turn of a transcript.
type Position string

const (
	PositionUser   Position = "user"
	PositionAI     Position = "ai"
	PositionSystem Position = "system"
	PositionTool   Position = "tool"
)

// String returns the string representation of the position.
func (p Position) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the position.
func (p Position) DisplayName() string {
	switch p {
	case PositionUser:
		return "You"
	case PositionAI:
		return "Assistant"
	case PositionSystem:
		return "System"
	case PositionTool:
		return "Tool"
	default:
		return string(p)
	}
}

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	switch p {
	case PositionUser, PositionAI, PositionSystem, PositionTool:
		return true
	}
	return false
}

// =============================================================================
// DATA TYPE
// =============================================================================

// DataKind distinguishes textual fragments from structured ones.
type DataKind string

const (
	DataText       DataKind = "text"
	DataToolCall   DataKind = "tool_call"
	DataToolResult DataKind = "tool_result"
	DataImage      DataKind = "image"
)

// Data is one fragment of a turn.
type Data struct {
	Kind DataKind `json:"kind"`
	Text string   `json:"text,omitempty"`

	// Tool fragments
	Tool    string `json:"tool,omitempty"`
	Payload string `json:"payload,omitempty"`

	// Image fragments carry a URL or a data URI
	Source string `json:"source,omitempty"`
}

// Text returns a textual fragment.
func Text(s string) Data {
	return Data{Kind: DataText, Text: s}
}

// ToolCall returns a fragment describing a tool invocation.
func ToolCall(tool, payload string) Data {
	return Data{Kind: DataToolCall, Tool: tool, Payload: payload}
}

// ToolResult returns a fragment holding a tool's output.
func ToolResult(tool, payload string) Data {
	return Data{Kind: DataToolResult, Tool: tool, Payload: payload}
}

// IsText reports whether the fragment is textual.
func (d Data) IsText() bool {
	return d.Kind == DataText || d.Kind == ""
}

// =============================================================================
// PART TYPE
// =============================================================================

// Part is a single turn of a transcript: a position and its ordered fragments.
type Part struct {
	Position  Position  `json:"position"`
	Data      []Data    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPart creates a turn holding the given fragments.
func NewPart(pos Position, data ...Data) Part {
	return Part{
		Position:  pos,
		Data:      append([]Data(nil), data...),
		Timestamp: time.Now(),
	}
}

// NewUserPart creates a user turn with a single text fragment.
func NewUserPart(text string) Part {
	return NewPart(PositionUser, Text(text))
}

// NewSystemPart creates a system turn with a single text fragment.
func NewSystemPart(text string) Part {
	return NewPart(PositionSystem, Text(text))
}

// =============================================================================
// PART METHODS
// =============================================================================

// Merge folds a streamed fragment into the turn. Text is concatenated onto
// the last textual fragment; anything else becomes a new fragment.
func (p *Part) Merge(d Data) {
	if d.IsText() {
		for i := len(p.Data) - 1; i >= 0; i-- {
			if p.Data[i].IsText() {
				p.Data[i].Text += d.Text
				return
			}
		}
	}
	p.Data = append(p.Data, d)
}

// Text concatenates the textual fragments of the turn.
func (p Part) Text() string {
	var sb strings.Builder
	for _, d := range p.Data {
		if d.IsText() {
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

// IsEmpty reports whether the turn carries no content.
func (p Part) IsEmpty() bool {
	for _, d := range p.Data {
		if !d.IsText() || strings.TrimSpace(d.Text) != "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the turn.
func (p Part) Clone() Part {
	p.Data = append([]Data(nil), p.Data...)
	return p
}
