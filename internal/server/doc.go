// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the development backend the client talks to.
//
// It owns position assignment through storage.Store and speaks the same JSON
// contract as package remote.
//
// # Endpoints
//
//   - POST /auth   - log in, registering the pseudonym on first use
//   - POST /db     - run one database request
//   - POST /ai     - answer a chat inline or through the push channel
//   - GET  /ws     - push channel (websocket, token in the query string)
//   - GET  /health - health check
//
// # Key Types
//
//   - Server: routes, middleware and lifecycle
//   - Hub: per-user websocket fan-out of stream events
//   - TokenIssuer: HS256 session tokens
//   - Responder: produces assistant turns (EchoResponder by default)
//
// # Usage
//
//	srv := server.NewServer(store, server.Options{Secret: secret})
//	go srv.Start("127.0.0.1:8787")
//	defer srv.Shutdown(ctx)
package server
