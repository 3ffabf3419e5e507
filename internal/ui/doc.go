// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the terminal front-end: a bubbletea program with one tab
// per kind of entity.
//
// The model never mutates state itself. Selection keys dispatch store
// actions; Enter runs a session operation as a tea.Cmd; every redraw is
// driven by a snapshot from the store subscription.
//
// # Key Types
//
//   - Model: the bubbletea model
//   - KeyMap: key bindings and help text
//   - Options: streaming, server address and operation timeout
//
// # Usage
//
//	m := ui.New(ctx, sess, ui.Options{Stream: true, ServerURL: url})
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package ui
