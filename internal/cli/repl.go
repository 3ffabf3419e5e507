// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/proxima-tui/internal/config"
	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/state"
)

const (
	// FirstTokenTimeout bounds the wait for a streamed reply to begin.
	FirstTokenTimeout = 15 * time.Second

	// QuietPeriod is how long a streamed reply must be silent to count as
	// finished.
	QuietPeriod = 2 * time.Second
)

// =============================================================================
// INPUT WITH HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "repl_history")}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// lineReader is the part of ChatCLI the loop needs.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// repl is one interactive prompt loop over a connection.
type repl struct {
	conn   *conn
	in     lineReader
	out    io.Writer
	md     markdown
	stream bool
	quiet  time.Duration
}

// run reads prompts until EOF, Ctrl+C or /quit.
func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, dimStyle.Render("Type a prompt. /new starts a chat, /chats lists them, /open N resumes one, /quit exits."))
	for {
		input, err := r.in.ReadInput(promptStyle.Render("proxima> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if done := r.command(input); done {
				return nil
			}
			continue
		}
		if err := r.send(ctx, input); err != nil {
			fmt.Fprintln(r.out, styleError(err))
		}
	}
}

// command handles a slash command and reports whether the loop should end.
func (r *repl) command(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	switch name {
	case "/quit", "/exit":
		return true
	case "/new":
		if _, err := r.conn.store.Apply(state.SetChat{Chat: dbsync.None}); err != nil {
			fmt.Fprintln(r.out, styleError(err))
		}
	case "/chats":
		snap := r.conn.store.Snapshot()
		snap.DB.Each(database.CategoryChat, func(it database.Item) bool {
			chat := it.(*database.Chat)
			if chat.AccessModes.Contains(snap.Cursors.AccessMode) {
				fmt.Fprintf(r.out, "%4d  %s\n", chat.Pos, chat.Label())
			}
			return true
		})
	case "/open":
		pos, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintln(r.out, styleError(fmt.Errorf("usage: /open N")))
			return false
		}
		snap, _ := r.conn.store.Apply(state.SetChat{Chat: dbsync.Some(pos)})
		if !snap.Cursors.Chat.Is(pos) {
			fmt.Fprintln(r.out, styleError(fmt.Errorf("no chat %d", pos)))
			return false
		}
		writeTurns(r.out, r.md, snap.DB.Chat(pos).Context.Parts)
	default:
		fmt.Fprintln(r.out, styleError(fmt.Errorf("unknown command %s", name)))
	}
	return false
}

// send posts a prompt and prints the reply. Streamed replies are printed as
// they arrive and the chat is saved once the stream has gone quiet.
func (r *repl) send(ctx context.Context, text string) error {
	from := 1
	snap, err := r.conn.store.Current()
	if err != nil {
		return err
	}
	if pos, ok := snap.Cursors.Chat.Get(); ok {
		from = snap.DB.Chat(pos).Context.Len() + 1
	}

	id, err := r.conn.sess.SendPrompt(ctx, text, r.stream)
	if err != nil {
		return err
	}
	if !r.stream {
		chat := r.conn.store.Snapshot().DB.Chat(id.Pos)
		if chat != nil && chat.Context.Len() > from {
			writeTurns(r.out, r.md, chat.Context.Parts[from:])
		}
		return nil
	}

	followReply(ctx, r.conn.store, id.Pos, from, r.out, r.quiet)
	fmt.Fprintln(r.out)
	return r.conn.sess.SaveChat(ctx, id.Pos)
}

// followReply writes the reply turns of chat, from turn index from on, as
// they grow. It returns once nothing has changed for quiet, or when no
// token arrived within FirstTokenTimeout.
func followReply(ctx context.Context, store *state.Store, chat, from int, w io.Writer, quiet time.Duration) string {
	updates, stop := store.Subscribe()
	defer stop()

	printed := ""
	emit := func(snap state.Snapshot) bool {
		cur := replyText(snap, chat, from)
		if cur == printed {
			return false
		}
		io.WriteString(w, newSuffix(printed, cur))
		printed = cur
		return true
	}

	wait := FirstTokenTimeout
	if emit(store.Snapshot()) {
		wait = quiet
	}
	idle := time.NewTimer(wait)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return printed
		case <-idle.C:
			return printed
		case snap, ok := <-updates:
			if !ok {
				return printed
			}
			if emit(snap) {
				idle.Reset(quiet)
			}
		}
	}
}

// replyText flattens the turns of chat from index from on.
func replyText(snap state.Snapshot, chat, from int) string {
	c := snap.DB.Chat(chat)
	if c == nil || c.Context.Len() <= from {
		return ""
	}
	texts := make([]string, 0, c.Context.Len()-from)
	for _, p := range c.Context.Parts[from:] {
		texts = append(texts, turnText(p))
	}
	return strings.Join(texts, "\n\n")
}

// newSuffix returns what must be written to turn printed into cur. When cur
// no longer extends printed it is written again in full.
func newSuffix(printed, cur string) string {
	if strings.HasPrefix(cur, printed) {
		return cur[len(printed):]
	}
	return "\n" + cur
}
