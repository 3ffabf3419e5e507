// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/session"
	"github.com/jeranaias/proxima-tui/internal/state"
	"github.com/jeranaias/proxima-tui/internal/ui/styles"
)

// =============================================================================
// TABS
// =============================================================================

// Tab indexes, as stored in the tab cursor.
const (
	TabHome = iota
	TabChat
	TabTags
	TabAccessModes
	TabConfigs
	TabNotifications
)

// TabNames are the tab titles in display order.
var TabNames = []string{"Home", "Chat", "Tags", "Access modes", "Configs", "Notifications"}

// DefaultOpTimeout bounds a single session operation started from the UI.
const DefaultOpTimeout = 30 * time.Second

// Options configures the program.
type Options struct {
	// Stream asks for streamed replies.
	Stream bool

	// ServerURL is shown on the home tab.
	ServerURL string

	// Device is the device id the backend assigned at login.
	Device int

	// OpTimeout bounds each session operation. Defaults to DefaultOpTimeout.
	OpTimeout time.Duration

	// MarkdownStyle is the glamour style for transcripts; "auto" follows
	// the terminal.
	MarkdownStyle string

	// CodeStyle is the chroma style for tool payloads.
	CodeStyle string

	// ShowTimestamps prints the time of every turn.
	ShowTimestamps bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model. All state it shows comes from the store's
// snapshots; it changes state only through store actions and session calls.
type Model struct {
	ctx   context.Context
	sess  *session.Session
	store *state.Store
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	md       *glamour.TermRenderer
	mdWidth  int

	snap    state.Snapshot
	updates <-chan state.Snapshot
	stop    func()

	busy     int
	status   string
	err      error
	notice   int
	showHelp bool
	width    int
	height   int
}

// New creates the model for sess. The store subscription lives until the
// program quits.
func New(ctx context.Context, sess *session.Session, opts Options) Model {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.CodeStyle == "" {
		opts.CodeStyle = "monokai"
	}
	store := sess.Store()
	updates, stop := store.Subscribe()

	ti := textinput.New()
	ti.Placeholder = "Type a prompt..."
	ti.Prompt = "> "
	ti.CharLimit = 8000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := styles.NewTheme()
	sp.Style = theme.Spinner

	return Model{
		ctx:      ctx,
		sess:     sess,
		store:    store,
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		snap:     store.Snapshot(),
		updates:  updates,
		stop:     stop,
	}
}

// Init starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.updates), textinput.Blink, m.spinner.Tick)
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case snapshotMsg:
		m.snap = msg.snap
		if m.snap.Err != nil {
			m.err = m.snap.Err
		}
		m.refresh()
		return m, waitForSnapshot(m.updates)

	case storeClosedMsg:
		return m, tea.Quit

	case opDoneMsg:
		m.busy--
		if msg.err != nil {
			glog.Warningf("[ui] %s failed: %v", msg.op, msg.err)
			m.err = msg.err
			m.status = ""
		} else {
			m.err = nil
			m.status = msg.op + " done"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width, m.height = msg.Width, msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.help.Width = msg.Width

	m.viewport.Width = m.contentWidth()
	m.viewport.Height = max(m.height-chromeHeight, 1)
	m.input.Width = max(m.width-8, 10)

	if w := m.viewport.Width - 4; w != m.mdWidth {
		m.mdWidth = w
		m.md = newMarkdownRenderer(w, m.opts.MarkdownStyle)
	}
	m.refresh()
	return m
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.snap.Cursors
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.NextTab):
		m.store.Dispatch(state.SetTab{Tab: (cur.Tab + 1) % len(TabNames)})
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.store.Dispatch(state.SetTab{Tab: (cur.Tab + len(TabNames) - 1) % len(TabNames)})
		return m, nil
	case key.Matches(msg, m.keys.Up):
		return m.move(-1), nil
	case key.Matches(msg, m.keys.Down):
		return m.move(1), nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.New):
		m.clearSelection()
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m.run("reload", m.sess.Load)
	case key.Matches(msg, m.keys.Save):
		if pos, ok := cur.Chat.Get(); ok && cur.Tab == TabChat {
			return m.run("save chat", func(ctx context.Context) error { return m.sess.SaveChat(ctx, pos) })
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if cur.Tab == TabNotifications {
			if pos, ok := m.selectedNotification(); ok {
				return m.run("delete notification", func(ctx context.Context) error {
					return m.sess.DeleteNotification(ctx, pos)
				})
			}
		}
		return m, nil
	case key.Matches(msg, m.keys.Use):
		m.use()
		return m, nil
	case key.Matches(msg, m.keys.Parent):
		if cur.Tab == TabTags {
			m.store.Dispatch(state.SetParentTag{Tag: cur.Tag})
		}
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		if pos, ok := cur.Tag.Get(); ok && cur.Tab == TabTags {
			if cur.AccessModeTags.Contains(pos) {
				m.store.Dispatch(state.RemoveFromTagsForAM{Tag: pos})
			} else {
				m.store.Dispatch(state.AddToTagsForAM{Tag: pos})
			}
		}
		return m, nil
	case msg.Type == tea.KeyEsc:
		m.err = nil
		m.status = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// move walks the selection of the visible tab.
func (m Model) move(delta int) Model {
	cur := m.snap.Cursors
	db := m.snap.DB
	pick := func(positions []int, c dbsync.Cursor) (dbsync.Cursor, bool) {
		pos, ok := step(positions, c.Pos, c.Valid, delta)
		if !ok {
			return dbsync.None, false
		}
		return dbsync.Some(pos), true
	}

	switch cur.Tab {
	case TabHome:
		positions := livePositions(db, database.CategoryAccessMode, nil)
		if pos, ok := step(positions, cur.AccessMode, true, delta); ok {
			m.store.Dispatch(state.SetAccessMode{AccessMode: pos})
		}
	case TabChat:
		if c, ok := pick(visibleChats(db, cur.AccessMode), cur.Chat); ok {
			m.store.Dispatch(state.SetChat{Chat: c})
		}
	case TabTags:
		if c, ok := pick(livePositions(db, database.CategoryTag, nil), cur.Tag); ok {
			m.store.Dispatch(state.SetModifiedTag{Tag: c})
		}
	case TabAccessModes:
		if c, ok := pick(livePositions(db, database.CategoryAccessMode, nil), cur.AccessModeForModification); ok {
			m.store.Dispatch(state.SetModifiedAM{AccessMode: c})
		}
	case TabConfigs:
		if c, ok := pick(livePositions(db, database.CategoryChatConfig, nil), cur.ConfigForModification); ok {
			m.store.Dispatch(state.SetModifiedConfig{Config: c})
		}
	case TabNotifications:
		m.notice = clampIndex(m.notice+delta, len(livePositions(db, database.CategoryNotification, nil)))
		m.refresh()
	}
	return m
}

func (m Model) clearSelection() {
	switch m.snap.Cursors.Tab {
	case TabChat:
		m.store.Dispatch(state.SetChat{Chat: dbsync.None})
	case TabTags:
		m.store.Dispatch(state.SetModifiedTag{Tag: dbsync.None})
	case TabAccessModes:
		m.store.Dispatch(state.SetModifiedAM{AccessMode: dbsync.None})
	case TabConfigs:
		m.store.Dispatch(state.SetConfigSettingID{Setting: dbsync.None})
	}
}

func (m Model) use() {
	cur := m.snap.Cursors
	switch cur.Tab {
	case TabAccessModes:
		if pos, ok := cur.AccessModeForModification.Get(); ok {
			m.store.Dispatch(state.SetAccessMode{AccessMode: pos})
		}
	case TabConfigs:
		m.store.Dispatch(state.ChangeUsedChatConfig{Config: cur.ConfigForModification})
	}
}

// submit sends the input to whatever the visible tab creates or edits.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	switch m.snap.Cursors.Tab {
	case TabChat:
		return m.run("send", func(ctx context.Context) error {
			_, err := m.sess.SendPrompt(ctx, text, m.opts.Stream)
			return err
		})
	case TabTags:
		return m.run("save tag", func(ctx context.Context) error {
			_, err := m.sess.SaveTag(ctx, text, "")
			return err
		})
	case TabAccessModes:
		return m.run("save access mode", func(ctx context.Context) error {
			_, err := m.sess.SaveAccessMode(ctx, text)
			return err
		})
	case TabConfigs:
		if rest, ok := strings.CutPrefix(text, SettingPrefix); ok {
			setting, err := parseSetting(rest)
			if err != nil {
				m.err = err
				return m, nil
			}
			return m.run("save setting", func(ctx context.Context) error {
				if _, err := m.store.Apply(state.SetCurrentSetting{Setting: &setting}); err != nil {
					return err
				}
				return m.sess.SaveSetting(ctx)
			})
		}
		return m.run("create config", func(ctx context.Context) error {
			_, err := m.sess.CreateConfig(ctx, text)
			return err
		})
	}
	m.err = errors.New("nothing to send on this tab")
	return m, nil
}

// run executes fn off the update loop; its outcome returns as opDoneMsg.
func (m Model) run(op string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy++
	m.status = op + "..."
	m.err = nil
	ctx, timeout := m.ctx, m.opts.OpTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) selectedNotification() (int, bool) {
	positions := livePositions(m.snap.DB, database.CategoryNotification, nil)
	if len(positions) == 0 {
		return 0, false
	}
	return positions[clampIndex(m.notice, len(positions))], true
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
