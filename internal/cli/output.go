// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(styles.TextMuted)
	labelStyle  = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(styles.Rose)
)

func styleError(err error) string {
	return errorStyle.Render("error: " + err.Error())
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdown renders replies for the terminal. Piped output is left as plain
// text.
type markdown struct {
	r *glamour.TermRenderer
}

func newMarkdown(t Terminal, style string) markdown {
	if !t.Styled {
		return markdown{}
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(t.ReplyWidth()))
	if err != nil {
		return markdown{}
	}
	return markdown{r: r}
}

func (m markdown) render(s string) string {
	if m.r == nil {
		return s
	}
	out, err := m.r.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

// writeTurns prints turns with a label per turn.
func writeTurns(w io.Writer, md markdown, turns []model.Part) {
	for _, p := range turns {
		io.WriteString(w, labelStyle.Render(p.Position.DisplayName())+"\n")
		io.WriteString(w, md.render(turnText(p))+"\n\n")
	}
}

// turnText flattens a turn; tool fragments are shown as fenced blocks.
func turnText(p model.Part) string {
	var sb strings.Builder
	for _, d := range p.Data {
		switch d.Kind {
		case model.DataToolCall, model.DataToolResult:
			sb.WriteString("\n```" + string(d.Kind) + " " + d.Tool + "\n" + d.Payload + "\n```\n")
		case model.DataImage:
			sb.WriteString("![image](" + d.Source + ")")
		default:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}
