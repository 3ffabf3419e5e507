// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
)

// Endpoint paths served by the backend.
const (
	PathAuth   = "/auth"
	PathDB     = "/db"
	PathAI     = "/ai"
	PathEvents = "/ws"
	PathHealth = "/health"
)

// =============================================================================
// AUTH
// =============================================================================

// AuthPayload is the body of an /auth request.
type AuthPayload struct {
	Password  string `json:"password"`
	Pseudonym string `json:"pseudonym"`
}

// AuthResponse carries the session token and the device id assigned to this
// client.
type AuthResponse struct {
	SessionToken string `json:"session_token"`
	DeviceID     int    `json:"device_id"`
}

// =============================================================================
// DATABASE
// =============================================================================

// DBPayload is the body of a /db request.
type DBPayload struct {
	AuthKey string           `json:"auth_key"`
	Request database.Request `json:"request"`
}

// DBResponse is the body of a /db reply.
type DBResponse struct {
	Reply database.Reply `json:"reply"`
}

// =============================================================================
// AI
// =============================================================================

// AIRequest asks the backend to continue a chat.
type AIRequest struct {
	Chat       int                  `json:"chat"`
	Context    model.Context        `json:"context"`
	Config     *database.ChatConfig `json:"config,omitempty"`
	AccessMode int                  `json:"access_mode"`
	Stream     bool                 `json:"stream"`
}

// AIPayload is the body of an /ai request.
type AIPayload struct {
	AuthKey string    `json:"auth_key"`
	Request AIRequest `json:"request"`
}

// AIReplyKind names the shape of an AI reply.
type AIReplyKind string

const (
	// AIBlock is a single complete turn.
	AIBlock AIReplyKind = "block"
	// AIMultiTurnBlock is several turns, e.g. tool calls and their results.
	AIMultiTurnBlock AIReplyKind = "multi_turn_block"
	// AIStreaming means the reply arrives as events on the push channel.
	AIStreaming AIReplyKind = "streaming"
)

// AIReply is the backend's answer to an AIRequest.
type AIReply struct {
	Kind    AIReplyKind    `json:"kind"`
	Part    *model.Part    `json:"part,omitempty"`
	Context *model.Context `json:"context,omitempty"`
}

// Turns returns the turns carried by a block reply.
func (r AIReply) Turns() []model.Part {
	switch r.Kind {
	case AIBlock:
		if r.Part != nil {
			return []model.Part{*r.Part}
		}
	case AIMultiTurnBlock:
		if r.Context != nil {
			return r.Context.Parts
		}
	}
	return nil
}

// AIResponse is the body of an /ai reply.
type AIResponse struct {
	Reply AIReply `json:"reply"`
}

// ErrorResponse is the body of any non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
