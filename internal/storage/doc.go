// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the backend's authoritative item store, kept in SQLite.
//
// Each user owns one dense ledger. Add assigns the next position of a
// category inside a transaction, so concurrent clients never receive the
// same position; removal only tombstones.
//
// # Key Types
//
//   - Store: SQLite-backed per-user ledgers and credentials
//
// # Usage
//
//	store, err := storage.Open(filepath.Join(dir, "proxima.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	reply := store.Handle(ctx, "alice", database.AddRequest(tag))
package storage
