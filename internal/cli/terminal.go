// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is used when stdout is not a terminal.
	DefaultTerminalWidth = 80

	// MinTerminalWidth keeps rendered replies readable in narrow panes.
	MinTerminalWidth = 40

	// replyMargin is left free on the right of rendered replies.
	replyMargin = 2
)

// =============================================================================
// TERMINAL
// =============================================================================

// Terminal describes the streams a command talks to.
type Terminal struct {
	// Interactive is set when stdin is a terminal, so credentials and REPL
	// input can be prompted for.
	Interactive bool

	// Display is set when stdout is a terminal.
	Display bool

	// Styled is set when replies may be rendered with colour and markdown.
	Styled bool

	// Width is the stdout width, clamped to MinTerminalWidth.
	Width int
}

// DetectTerminal inspects stdin and stdout. NO_COLOR and CLICOLOR=0 turn
// styling off even on a terminal.
func DetectTerminal() Terminal {
	t := Terminal{
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		Display:     term.IsTerminal(int(os.Stdout.Fd())),
		Width:       DefaultTerminalWidth,
	}
	t.Styled = t.Display && !termenv.EnvNoColor()
	if t.Display {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			t.Width = clampWidth(w)
		}
	}
	return t
}

// CanRunTUI reports whether the full-screen client can start.
func (t Terminal) CanRunTUI() bool {
	return t.Interactive && t.Display
}

// ReplyWidth is the word-wrap width for rendered replies.
func (t Terminal) ReplyWidth() int {
	return clampWidth(t.Width) - replyMargin
}

func clampWidth(w int) int {
	switch {
	case w <= 0:
		return DefaultTerminalWidth
	case w < MinTerminalWidth:
		return MinTerminalWidth
	}
	return w
}
