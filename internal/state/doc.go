// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state holds the client's single source of truth and the reducer
// that mutates it.
//
// Every change to the ledger, the cursors and the stream accumulator goes
// through Reduce, one action at a time. Store runs Reduce on its own
// goroutine and hands out private snapshots; network results re-enter as
// actions, so the only suspension points are outside the reducer.
//
// # Key Types
//
//   - State: Ledger, cursors, streams and pending optimistic ids
//   - Action: SetChat, CreateItem, AddItem, ApplyUpdates, StreamEvent, ...
//   - Store: Actor owning the State
//   - Snapshot: Private copy of the state after a transition
//
// # Usage
//
//	store := state.NewStore(ctx, state.New("alice"), state.Options{})
//	snap, _ := store.Apply(state.CreateItem{Item: tag, Select: true})
//	local := snap.Created
package state
