// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package push receives stream events from the backend over a websocket.
//
// The connection is re-established with backoff whenever it drops, so an
// event may be delivered more than once; stream.Accumulator discards repeats
// by token.
//
// # Usage
//
//	pc := push.NewClient(cfg.ServerURL, rc.Token, push.DefaultSettings())
//	go pc.Run(ctx, func(ev stream.Event) {
//	    store.Dispatch(state.StreamEvent{Event: ev})
//	})
package push
