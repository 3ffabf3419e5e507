// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"

	"github.com/jeranaias/proxima-tui/internal/model"
)

// Kind is the stage of a streamed reply an event belongs to.
type Kind string

const (
	KindStart    Kind = "start"
	KindContinue Kind = "continue"
	KindEnd      Kind = "end"
)

// Event is one token pushed by the server for a chat.
type Event struct {
	Kind     Kind           `json:"kind"`
	Chat     int            `json:"chat"`
	Token    uint64         `json:"token"`
	Position model.Position `json:"position,omitempty"`
	Data     model.Data     `json:"data"`
}

// Start builds a StartStream event.
func Start(chat int, token uint64, pos model.Position, data model.Data) Event {
	return Event{Kind: KindStart, Chat: chat, Token: token, Position: pos, Data: data}
}

// Continue builds a ContinueStream event.
func Continue(chat int, token uint64, data model.Data) Event {
	return Event{Kind: KindContinue, Chat: chat, Token: token, Data: data}
}

func (e Event) String() string {
	return fmt.Sprintf("%s chat=%d token=%d", e.Kind, e.Chat, e.Token)
}

var (
	// ErrUnknownChat is returned for events addressed to a chat the ledger
	// does not hold.
	ErrUnknownChat = errors.New("stream: unknown chat")

	// ErrUnknownKind is returned for events of an unrecognised kind.
	ErrUnknownKind = errors.New("stream: unknown event kind")
)

// ProtocolViolationError is the panic value raised for an EndStream event.
// The server never sends one; receiving it means client and server disagree
// about the protocol.
type ProtocolViolationError struct {
	Chat  int
	Token uint64
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("stream: end event for chat %d (token %d) is not part of the protocol", e.Chat, e.Token)
}
