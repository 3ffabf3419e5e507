// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// PART TESTS
// =============================================================================

func TestPart_MergeConcatenatesText(t *testing.T) {
	p := NewPart(PositionAI, Text("Hel"))
	p.Merge(Text("lo"))

	if len(p.Data) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(p.Data))
	}
	if p.Text() != "Hello" {
		t.Errorf("Text() = %q, want %q", p.Text(), "Hello")
	}
}

func TestPart_MergeAppendsStructuredData(t *testing.T) {
	p := NewPart(PositionAI, Text("calling"))
	p.Merge(ToolCall("calculator", `{"expr":"1+1"}`))

	if len(p.Data) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(p.Data))
	}
	if p.Data[1].Kind != DataToolCall {
		t.Errorf("second fragment kind = %q, want %q", p.Data[1].Kind, DataToolCall)
	}
}

func TestPart_MergeTextFindsLastTextFragment(t *testing.T) {
	p := NewPart(PositionAI, Text("a"), ToolCall("t", "{}"))
	p.Merge(Text("b"))

	if len(p.Data) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(p.Data))
	}
	if p.Data[0].Text != "ab" {
		t.Errorf("first fragment = %q, want %q", p.Data[0].Text, "ab")
	}
}

func TestPart_MergeIntoEmptyTurn(t *testing.T) {
	p := NewPart(PositionAI)
	p.Merge(Text("x"))
	if p.Text() != "x" {
		t.Errorf("Text() = %q, want %q", p.Text(), "x")
	}
}

func TestPart_CloneIsDeep(t *testing.T) {
	p := NewPart(PositionUser, Text("a"))
	c := p.Clone()
	c.Merge(Text("b"))

	if p.Text() != "a" {
		t.Errorf("original mutated: %q", p.Text())
	}
}

func TestPart_IsEmpty(t *testing.T) {
	if !NewPart(PositionAI, Text("  ")).IsEmpty() {
		t.Error("whitespace-only turn should be empty")
	}
	if NewPart(PositionAI, ToolCall("t", "")).IsEmpty() {
		t.Error("tool call turn should not be empty")
	}
}

// =============================================================================
// POSITION TESTS
// =============================================================================

func TestPosition_DisplayName(t *testing.T) {
	tests := []struct {
		pos  Position
		want string
	}{
		{PositionUser, "You"},
		{PositionAI, "Assistant"},
		{PositionSystem, "System"},
		{PositionTool, "Tool"},
		{Position("other"), "other"},
	}
	for _, tc := range tests {
		if got := tc.pos.DisplayName(); got != tc.want {
			t.Errorf("%q.DisplayName() = %q, want %q", tc.pos, got, tc.want)
		}
	}
	if Position("other").Valid() {
		t.Error("unknown position reported valid")
	}
}

// =============================================================================
// CONTEXT TESTS
// =============================================================================

func TestContext_AddAndLast(t *testing.T) {
	var c Context
	if c.Last() != nil {
		t.Fatal("Last() on empty transcript should be nil")
	}

	c.AddUser("hi")
	idx := c.Add(NewPart(PositionAI, Text("hello")))

	if idx != 1 {
		t.Errorf("Add() index = %d, want 1", idx)
	}
	if c.Last().Text() != "hello" {
		t.Errorf("Last().Text() = %q", c.Last().Text())
	}
	if c.AwaitingReply() {
		t.Error("AwaitingReply() should be false after an AI turn")
	}
}

func TestContext_At(t *testing.T) {
	c := NewContext(NewUserPart("a"))
	if c.At(0) == nil {
		t.Error("At(0) should exist")
	}
	if c.At(1) != nil || c.At(-1) != nil {
		t.Error("At() out of range should be nil")
	}
}

func TestContext_Title(t *testing.T) {
	c := NewContext(NewSystemPart("sys"), NewUserPart("What   is\nGo?"))
	if got := c.Title(); got != "What is Go?" {
		t.Errorf("Title() = %q", got)
	}

	long := NewContext(NewUserPart(strings.Repeat("x", 80)))
	if got := []rune(long.Title()); len(got) != DefaultTitleLength {
		t.Errorf("long title has %d runes, want %d", len(got), DefaultTitleLength)
	}

	if got := (Context{}).Title(); got != "New chat" {
		t.Errorf("empty Title() = %q", got)
	}
}

func TestContext_CloneIsDeep(t *testing.T) {
	c := NewContext(NewUserPart("a"))
	d := c.Clone()
	d.Parts[0].Merge(Text("b"))
	d.AddUser("c")

	if c.Len() != 1 || c.Parts[0].Text() != "a" {
		t.Errorf("original mutated: %+v", c)
	}
}

func TestContext_Transcript(t *testing.T) {
	c := NewContext(NewUserPart("hi"), NewPart(PositionAI, Text("yo")))
	out := c.Transcript()
	if !strings.Contains(out, "**You:** hi") || !strings.Contains(out, "**Assistant:** yo") {
		t.Errorf("Transcript() = %q", out)
	}
}
