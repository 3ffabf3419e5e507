// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dbsync reconciles optimistic creates in the client ledger with the
// positions assigned by the remote store.
//
// A create is applied locally at the next free position before the server
// has answered. When the server assigns a different position, DeltaForAdd
// fetches the entities that landed in between and ApplyAdd splices them in,
// moves the new entity to its authoritative slot and remaps the selection
// cursors that pointed at it.
//
// # Key Types
//
//   - Cursors: The user's selection state
//   - Update: Authoritative (id, entity) pair
//   - Delta: Result of DeltaForAdd
//   - RequestFunc: Transport hook used to reach the remote store
//
// # Usage
//
//	local := ledger.NextID(database.CategoryTag)
//	ledger.AppendRaw(tag)
//	d, err := dbsync.DeltaForAdd(ctx, local, tag, client.Do)
//	cursors = dbsync.ApplyAdd(ledger, local, d, cursors)
package dbsync
