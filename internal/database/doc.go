// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package database holds the positional entity ledger shared by the client
// and the remote store.
//
// Entities are identified by their category and a dense position. The
// remote store is authoritative for positions; the client ledger mirrors it
// and is reconciled by package dbsync.
//
// # Key Types
//
//   - ItemID: Category plus position
//   - Item: Interface implemented by every entity (Chat, Tag, AccessMode, ...)
//   - Ledger: Per-category dense slices plus the user data singleton
//   - Request, Reply: Remote store operations and their answers
//
// # Usage
//
//	l := database.NewLedger("alice")
//	id := l.AppendRaw(database.NewTag("work", "", nil))
//	ok := l.InsertOrUpdate(&database.Tag{Pos: 5}) // false: would leave a gap
//	_ = id
//	_ = ok
package database
