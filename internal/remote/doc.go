// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package remote is the HTTP client for the proxima backend.
//
// The backend exposes three JSON endpoints: /auth exchanges a pseudonym and
// password for a session token, /db runs one database.Request and /ai asks
// for a model reply. Streamed replies are delivered separately by package
// push.
//
// # Key Types
//
//   - Client: Backend client; Client.Do satisfies dbsync.RequestFunc
//   - AIRequest, AIReply: Model reply request and answer
//   - StatusError: Non-2xx reply
//
// # Usage
//
//	client := remote.NewClient("http://localhost:8321")
//	if _, err := client.Auth(ctx, "alice", "secret"); err != nil {
//	    return err
//	}
//	reply, err := client.Do(ctx, database.GetAllRequest())
package remote
