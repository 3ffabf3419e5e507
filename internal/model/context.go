// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// DefaultTitleLength bounds titles derived from the first user turn.
const DefaultTitleLength = 50

// =============================================================================
// CONTEXT TYPE
// =============================================================================

// Context is a whole chat transcript: an ordered list of turns.
type Context struct {
	Parts []Part `json:"parts"`
}

// NewContext creates a transcript from the given turns.
func NewContext(parts ...Part) Context {
	return Context{Parts: append([]Part(nil), parts...)}
}

// =============================================================================
// TURN MANAGEMENT
// =============================================================================

// Add appends a turn and returns its index.
func (c *Context) Add(p Part) int {
	c.Parts = append(c.Parts, p)
	return len(c.Parts) - 1
}

// AddUser appends a user turn holding text.
func (c *Context) AddUser(text string) int {
	return c.Add(NewUserPart(text))
}

// Len returns the number of turns.
func (c Context) Len() int {
	return len(c.Parts)
}

// Last returns the most recent turn, or nil if the transcript is empty.
func (c *Context) Last() *Part {
	if len(c.Parts) == 0 {
		return nil
	}
	return &c.Parts[len(c.Parts)-1]
}

// At returns the turn at index i, or nil when out of range.
func (c *Context) At(i int) *Part {
	if i < 0 || i >= len(c.Parts) {
		return nil
	}
	return &c.Parts[i]
}

// LastPosition returns the position of the latest turn.
func (c Context) LastPosition() (Position, bool) {
	if len(c.Parts) == 0 {
		return "", false
	}
	return c.Parts[len(c.Parts)-1].Position, true
}

// AwaitingReply reports whether the latest turn came from the user.
func (c Context) AwaitingReply() bool {
	pos, ok := c.LastPosition()
	return ok && pos == PositionUser
}

// Extend appends every turn of other.
func (c *Context) Extend(other Context) {
	c.Parts = append(c.Parts, other.Clone().Parts...)
}

// Clone returns a deep copy of the transcript.
func (c Context) Clone() Context {
	if c.Parts == nil {
		return Context{}
	}
	out := Context{Parts: make([]Part, len(c.Parts))}
	for i, p := range c.Parts {
		out.Parts[i] = p.Clone()
	}
	return out
}

// =============================================================================
// DISPLAY HELPERS
// =============================================================================

// Title derives a display title from the first user turn.
func (c Context) Title() string {
	for _, p := range c.Parts {
		if p.Position != PositionUser {
			continue
		}
		title := strings.Join(strings.Fields(p.Text()), " ")
		runes := []rune(title)
		if len(runes) > DefaultTitleLength {
			return string(runes[:DefaultTitleLength-3]) + "..."
		}
		return title
	}
	return "New chat"
}

// Transcript renders the turns as markdown, one section per turn.
func (c Context) Transcript() string {
	var sb strings.Builder
	for i, p := range c.Parts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("**")
		sb.WriteString(p.Position.DisplayName())
		sb.WriteString(":** ")
		sb.WriteString(p.Text())
	}
	return sb.String()
}
