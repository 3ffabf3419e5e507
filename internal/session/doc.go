// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs the client's user-facing flows against the state
// store and the backend.
//
// Creates are optimistic: the entity is appended locally, sent with an Add
// request and then reconciled with the position the backend assigned.
//
// # Key Types
//
//   - Session: Load, SendPrompt, SaveTag, SaveAccessMode, CreateConfig,
//     SaveSetting, DeleteNotification and HandleEvent
//   - Remote: the backend calls a session makes
//
// # Usage
//
//	sess := session.New(store, client, client.DeviceID())
//	if err := sess.Load(ctx); err != nil {
//	    return err
//	}
//	id, err := sess.SendPrompt(ctx, "hello", false)
package session
