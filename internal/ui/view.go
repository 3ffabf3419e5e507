// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/state"
	"github.com/jeranaias/proxima-tui/internal/ui/styles"
	"github.com/jeranaias/proxima-tui/internal/util"
)

// chromeHeight is the number of lines around the viewport: brand and tabs,
// the bordered input and the status bar.
const chromeHeight = 6

// sidebarWidth is the width of the chat list next to a transcript.
const sidebarWidth = 28

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.theme.App.Render(m.help.View(m.keys))
	}

	header := renderHeader(m.theme, m.snap.DB.User.Label(), m.snap.Cursors.Tab, m.width)
	body := m.viewport.View()
	if m.sidebar() {
		list := lipgloss.NewStyle().Width(sidebarWidth).Height(m.viewport.Height).
			Render(m.chatList(sidebarWidth))
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, " ", body)
	}
	input := m.theme.InputContainer.Width(max(m.width-4, 10)).Render(m.input.View())
	return m.theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, input, m.statusBar()))
}

func (m Model) sidebar() bool {
	return m.snap.Cursors.Tab == TabChat && m.theme.GetLayoutMode() == styles.LayoutWide
}

func (m Model) contentWidth() int {
	w := max(m.width-2, 10)
	if m.sidebar() {
		w -= sidebarWidth + 1
	}
	return w
}

// refresh re-renders the viewport content from the current snapshot.
func (m *Model) refresh() {
	if m.width == 0 {
		return
	}
	m.viewport.Width = m.contentWidth()
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.body())
	if m.snap.Cursors.Tab == TabChat && atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) body() string {
	snap := m.snap
	width := m.viewport.Width
	switch snap.Cursors.Tab {
	case TabHome:
		return homeView(m.theme, snap, m.opts)
	case TabChat:
		pos, ok := snap.Cursors.Chat.Get()
		if !ok {
			if m.sidebar() {
				return m.theme.Empty.Render("New chat. Type a prompt and press Enter.")
			}
			return m.chatList(width)
		}
		chat := snap.DB.Chat(pos)
		if chat == nil {
			return ""
		}
		title := m.theme.HeaderBrand.Render(util.TruncateWidth(chat.Label(), width))
		if _, streaming := snap.Streams.Tracked(pos); streaming {
			title += " " + m.spinner.View()
		}
		t := transcript{theme: m.theme, md: m.md, codeStyle: m.opts.CodeStyle, timestamps: m.opts.ShowTimestamps}
		return title + "\n\n" + t.render(chat.Context, width)
	case TabTags:
		return tagsView(m.theme, snap, width)
	case TabAccessModes:
		return accessModesView(m.theme, snap, width)
	case TabConfigs:
		return configsView(m.theme, snap, width)
	case TabNotifications:
		return notificationsView(m.theme, snap, m.notice, width)
	}
	return ""
}

func (m Model) chatList(width int) string {
	snap := m.snap
	var rows []row
	for _, pos := range visibleChats(snap.DB, snap.Cursors.AccessMode) {
		_, streaming := snap.Streams.Tracked(pos)
		rows = append(rows, row{
			Pos:      pos,
			Label:    snap.DB.Chat(pos).Label(),
			Selected: snap.Cursors.Chat.Is(pos),
			Pending:  snap.Pending.Contains(database.ChatID(pos)),
			Marked:   streaming,
		})
	}
	return renderRows(m.theme, rows, width, "No chats in this access mode.")
}

// =============================================================================
// FRAME
// =============================================================================

func renderHeader(theme *styles.Theme, user string, active, width int) string {
	brand := theme.HeaderBrand.Render("proxima") + theme.Muted.Render(" · "+user)
	tabs := make([]string, len(TabNames))
	for i, name := range TabNames {
		if i == active {
			tabs[i] = theme.TabActive.Render(name)
		} else {
			tabs[i] = theme.Tab.Render(name)
		}
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if lipgloss.Width(line) > width {
		// Narrow terminals only show the active tab.
		line = theme.TabActive.Render(fmt.Sprintf("%s (%d/%d)", TabNames[active], active+1, len(TabNames)))
	}
	return brand + "\n" + line
}

func (m Model) statusBar() string {
	var left string
	switch {
	case m.err != nil:
		left = styles.RenderError(util.SingleLine(m.err.Error()))
	case m.busy > 0:
		left = m.spinner.View() + " " + m.status
	case m.status != "":
		left = styles.RenderSuccess(m.status)
	}
	var right []string
	if n := m.snap.Pending.Cardinality(); n > 0 {
		right = append(right, styles.RenderPending(fmt.Sprintf("%d pending", n)))
	}
	if n := m.snap.Streams.Len(); n > 0 {
		right = append(right, m.theme.Muted.Render(fmt.Sprintf("%d streaming", n)))
	}
	right = append(right, m.help.ShortHelpView(m.keys.ShortHelp()))

	rightText := strings.Join(right, "  ")
	gap := max(m.width-4-lipgloss.Width(left)-lipgloss.Width(rightText), 1)
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + rightText)
}

// =============================================================================
// TABS
// =============================================================================

func homeView(theme *styles.Theme, snap state.Snapshot, opts Options) string {
	db := snap.DB
	cur := snap.Cursors
	var sb strings.Builder

	field := func(name, value string) {
		sb.WriteString(theme.Muted.Render(util.PadRight(name, 16)))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	field("User", db.User.Label())
	field("Server", opts.ServerURL)
	field("Device", fmt.Sprintf("%d", opts.Device))
	if am := db.AccessMode(cur.AccessMode); am != nil {
		field("Access mode", am.Name)
	}
	used := "default"
	if pos, ok := cur.Config.Get(); ok && db.Config(pos) != nil {
		used = db.Config(pos).Name
	}
	field("Configuration", used)
	field("Chats", fmt.Sprintf("%d", len(visibleChats(db, cur.AccessMode))))
	field("Tags", fmt.Sprintf("%d", len(livePositions(db, database.CategoryTag, nil))))
	field("Notifications", fmt.Sprintf("%d", len(livePositions(db, database.CategoryNotification, nil))))
	field("Version", fmt.Sprintf("%d", snap.Version))

	sb.WriteString("\n")
	sb.WriteString(theme.Muted.Render("Up/Down switches the access mode. Tab moves between tabs."))
	return sb.String()
}

func tagsView(theme *styles.Theme, snap state.Snapshot, width int) string {
	db := snap.DB
	cur := snap.Cursors
	var rows []row
	for _, pos := range livePositions(db, database.CategoryTag, nil) {
		tag := db.Tag(pos)
		var detail []string
		if tag.Parent != nil {
			if parent := db.Tag(*tag.Parent); parent != nil {
				detail = append(detail, "in "+parent.Name)
			}
		}
		if cur.ParentTag.Is(pos) {
			detail = append(detail, "(parent)")
		}
		rows = append(rows, row{
			Pos:      pos,
			Label:    tag.Name,
			Detail:   theme.Muted.Render(strings.Join(detail, " ")),
			Selected: cur.Tag.Is(pos),
			Pending:  snap.Pending.Contains(database.TagID(pos)),
			Marked:   cur.AccessModeTags.Contains(pos),
		})
	}
	hint := "Enter saves the selected tag or creates one. C-p sets the parent, C-t toggles it for the access mode under edit."
	return renderRows(theme, rows, width, "No tags yet.") + "\n\n" + theme.Muted.Render(hint)
}

func accessModesView(theme *styles.Theme, snap state.Snapshot, width int) string {
	db := snap.DB
	cur := snap.Cursors
	var rows []row
	for _, pos := range livePositions(db, database.CategoryAccessMode, nil) {
		am := db.AccessMode(pos)
		rows = append(rows, row{
			Pos:      pos,
			Label:    am.Name,
			Detail:   theme.Muted.Render(fmt.Sprintf("%d tags", am.Tags.Len())),
			Selected: cur.AccessModeForModification.Is(pos),
			Pending:  snap.Pending.Contains(database.AccessModeID(pos)),
			Marked:   cur.AccessMode == pos,
		})
	}
	out := renderRows(theme, rows, width, "No access modes.")
	out += "\n\n" + theme.TurnLabel.Render("Tags for the mode under edit: ") + tagNames(db, cur.AccessModeTags)
	return out
}

func configsView(theme *styles.Theme, snap state.Snapshot, width int) string {
	db := snap.DB
	cur := snap.Cursors
	var rows []row
	for _, pos := range livePositions(db, database.CategoryChatConfig, nil) {
		cfg := db.Config(pos)
		rows = append(rows, row{
			Pos:      pos,
			Label:    cfg.Name,
			Detail:   theme.Muted.Render(fmt.Sprintf("%d settings", len(cfg.Settings))),
			Selected: cur.ConfigForModification.Is(pos),
			Pending:  snap.Pending.Contains(database.ChatConfigID(pos)),
			Marked:   cur.Config.Is(pos),
		})
	}
	out := renderRows(theme, rows, width, "No configurations. Type a name and press Enter.")

	if pos, ok := cur.ConfigForModification.Get(); ok && db.Config(pos) != nil {
		out += "\n\n" + theme.TurnLabel.Render("Settings of "+db.Config(pos).Name) + "\n"
		out += settingsView(theme, db.Config(pos), cur, width)
	}
	out += "\n\n" + theme.Muted.Render(`"set KIND VALUE" adds a setting, e.g. "set temperature 70". C-u uses the selected configuration.`)
	return out
}

func settingsView(theme *styles.Theme, cfg *database.ChatConfig, cur dbsync.Cursors, width int) string {
	rows := make([]row, 0, len(cfg.Settings))
	for i, s := range cfg.Settings {
		rows = append(rows, row{
			Pos:      i,
			Label:    s.Title(),
			Detail:   settingValue(s),
			Selected: cur.Setting.Is(i),
		})
	}
	out := renderRows(theme, rows, width, "No settings.")
	if draft := cur.SettingForModification; draft != nil {
		out += "\n" + theme.Muted.Render("draft: "+draft.Title()+" "+settingValue(*draft))
	}
	return out
}

func settingValue(s database.ChatSetting) string {
	switch {
	case s.Prompt != nil:
		return util.TruncateRunes(s.Prompt.Text(), 40)
	case s.Kind == database.SettingTool:
		return ""
	}
	return fmt.Sprintf("%d", s.Value)
}

func notificationsView(theme *styles.Theme, snap state.Snapshot, selected, width int) string {
	db := snap.DB
	positions := livePositions(db, database.CategoryNotification, nil)
	selected = clampIndex(selected, len(positions))
	rows := make([]row, 0, len(positions))
	for i, pos := range positions {
		n := db.Notification(pos)
		rows = append(rows, row{
			Pos:      pos,
			Label:    n.Message,
			Detail:   theme.Muted.Render(n.Timestamp.Format("Jan 2 15:04")),
			Selected: i == selected,
			Pending:  snap.Pending.Contains(database.NotificationID(pos)),
		})
	}
	return renderRows(theme, rows, width, "No notifications.")
}

func tagNames(db *database.Ledger, tags database.Positions) string {
	if tags.Len() == 0 {
		return "none"
	}
	names := make([]string, 0, tags.Len())
	for _, pos := range tags.Sorted() {
		if tag := db.Tag(pos); tag != nil {
			names = append(names, tag.Name)
		}
	}
	return strings.Join(names, ", ")
}
