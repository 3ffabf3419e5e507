// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/ui/styles"
	"github.com/jeranaias/proxima-tui/internal/util"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// newMarkdownRenderer returns a glamour renderer wrapping at width, or nil
// when none can be built. A nil renderer shows text as-is. style is a
// glamour standard style name; "auto" and "" follow the terminal.
func newMarkdownRenderer(width int, style string) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

func renderMarkdown(r *glamour.TermRenderer, s string) string {
	if r == nil {
		return s
	}
	out, err := r.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlightPayload colors a tool payload with the named chroma style. JSON
// is tried first since that is what tools exchange; anything else is
// analysed.
func highlightPayload(code, styleName string) string {
	lexer := lexers.Get("json")
	if !looksLikeJSON(code) {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// transcript renders chat turns.
type transcript struct {
	theme      *styles.Theme
	md         *glamour.TermRenderer
	codeStyle  string
	timestamps bool
}

// render renders every turn of ctx. Text goes through markdown, tool
// fragments are highlighted.
func (t transcript) render(ctx model.Context, width int) string {
	if ctx.Len() == 0 {
		return t.theme.Empty.Render("No messages yet. Type a prompt and press Enter.")
	}
	turns := make([]string, 0, ctx.Len())
	for _, part := range ctx.Parts {
		turns = append(turns, t.turn(part, width))
	}
	return strings.Join(turns, "\n\n")
}

func (t transcript) turn(part model.Part, width int) string {
	label := t.theme.TurnLabel.Render(part.Position.DisplayName())
	if t.timestamps && !part.Timestamp.IsZero() {
		label += t.theme.Muted.Render(" " + part.Timestamp.Format("15:04"))
	}
	var blocks []string
	for _, d := range part.Data {
		switch d.Kind {
		case model.DataToolCall, model.DataToolResult:
			head := t.theme.Muted.Render(string(d.Kind) + " " + d.Tool)
			body := highlightPayload(d.Payload, t.codeStyle)
			blocks = append(blocks, t.theme.ToolTurn.Render(head+"\n"+body))
		case model.DataImage:
			blocks = append(blocks, t.theme.Muted.Render("[image] "+util.TruncateWidth(d.Source, width-10)))
		default:
			if d.Text != "" {
				blocks = append(blocks, renderMarkdown(t.md, d.Text))
			}
		}
	}
	body := strings.Join(blocks, "\n")

	var style lipgloss.Style
	switch part.Position {
	case model.PositionUser:
		style = t.theme.UserTurn
	case model.PositionAI, model.PositionTool:
		style = t.theme.AITurn
	default:
		style = t.theme.SystemTurn
	}
	return style.Render(label + "\n" + body)
}

// =============================================================================
// LISTS
// =============================================================================

// row is one line of a list tab.
type row struct {
	Pos      int
	Label    string
	Detail   string
	Selected bool
	Pending  bool
	Marked   bool
}

// renderRows renders rows to fit width. Selected rows are highlighted,
// pending rows carry the pending marker and marked rows the active marker.
func renderRows(theme *styles.Theme, rows []row, width int, empty string) string {
	if len(rows) == 0 {
		return theme.Empty.Render(empty)
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		marker := "    "
		if r.Marked {
			marker = styles.StatusIndicators.Active + " "
		}
		text := marker + util.SingleLine(r.Label)
		if r.Detail != "" {
			text += "  " + r.Detail
		}
		if r.Pending {
			text += " " + styles.StatusIndicators.Pending
		}
		text = util.TruncateWidth(text, max(width-2, 1))

		switch {
		case r.Selected:
			lines = append(lines, theme.ListSelected.Render(text))
		case r.Pending:
			lines = append(lines, theme.ListItem.Inherit(theme.ListPending).Render(text))
		default:
			lines = append(lines, theme.ListItem.Render(text))
		}
	}
	return strings.Join(lines, "\n")
}

// livePositions lists the positions of the live entities of c that keep
// returns true for.
func livePositions(l *database.Ledger, c database.Category, keep func(database.Item) bool) []int {
	var out []int
	l.Each(c, func(it database.Item) bool {
		if keep == nil || keep(it) {
			out = append(out, it.ID().Pos)
		}
		return true
	})
	return out
}

// visibleChats lists the live chats the access mode can see.
func visibleChats(l *database.Ledger, accessMode int) []int {
	return livePositions(l, database.CategoryChat, func(it database.Item) bool {
		return it.(*database.Chat).AccessModes.Contains(accessMode)
	})
}

// step moves a selection over positions. An unset or unknown selection
// starts from the first entry going down and from the last going up.
func step(positions []int, current int, valid bool, delta int) (int, bool) {
	if len(positions) == 0 {
		return 0, false
	}
	idx := -1
	if valid {
		for i, p := range positions {
			if p == current {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		if delta < 0 {
			return positions[len(positions)-1], true
		}
		return positions[0], true
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(positions) {
		idx = len(positions) - 1
	}
	return positions[idx], true
}
