// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across proxima.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateRunes, TruncateWidth, PadRight: column-aware text fitting
//   - SingleLine: flatten text for one-line list entries
//
// # Usage
//
//	label := util.PadRight(util.SingleLine(chat.Label()), 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
