// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream folds server-pushed tokens into chat transcripts.
//
// Delivery is at-least-once and may interleave across chats, so each chat
// keeps the set of token ids already applied. State for a chat is dropped
// after IdleTimeout without events.
package stream
