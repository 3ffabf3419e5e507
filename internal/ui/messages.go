// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/proxima-tui/internal/state"
)

// snapshotMsg delivers the store's newest snapshot.
type snapshotMsg struct {
	snap state.Snapshot
}

// storeClosedMsg signals that the store stopped publishing.
type storeClosedMsg struct{}

// opDoneMsg reports the outcome of a session operation run as a command.
type opDoneMsg struct {
	op  string
	err error
}

// waitForSnapshot blocks on the subscription until the next snapshot.
func waitForSnapshot(ch <-chan state.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return storeClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}
