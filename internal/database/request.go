// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// ITEM ENVELOPE
// =============================================================================

// Envelope carries a polymorphic Item as {"category":..., "value":...}.
type Envelope struct {
	Item Item
}

type envelopeWire struct {
	Category Category        `json:"category"`
	Value    json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Item == nil {
		return []byte("null"), nil
	}
	value, err := json.Marshal(e.Item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeWire{Category: e.Item.Category(), Value: value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		e.Item = nil
		return nil
	}
	var w envelopeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	item, err := NewItem(w.Category)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(w.Value, item); err != nil {
		return fmt.Errorf("decode %s: %w", w.Category, err)
	}
	e.Item = item
	return nil
}

// =============================================================================
// REQUEST
// =============================================================================

// RequestKind names a remote store operation.
type RequestKind string

const (
	RequestAdd    RequestKind = "add"
	RequestGet    RequestKind = "get"
	RequestUpdate RequestKind = "update"
	RequestRemove RequestKind = "remove"
	RequestGetAll RequestKind = "get_all"
)

// Request is an operation against the remote store.
type Request struct {
	Kind RequestKind
	Item Item   // Add, Update
	ID   ItemID // Get, Remove
}

func AddRequest(item Item) Request { return Request{Kind: RequestAdd, Item: item} }
func GetRequest(id ItemID) Request { return Request{Kind: RequestGet, ID: id} }
func UpdateRequest(item Item) Request { return Request{Kind: RequestUpdate, Item: item} }
func RemoveRequest(id ItemID) Request { return Request{Kind: RequestRemove, ID: id} }
func GetAllRequest() Request { return Request{Kind: RequestGetAll} }

// Idempotent reports whether replaying the request is harmless.
func (r Request) Idempotent() bool {
	return r.Kind == RequestGet || r.Kind == RequestGetAll
}

// String formats the request for logs.
func (r Request) String() string {
	switch r.Kind {
	case RequestAdd, RequestUpdate:
		if r.Item != nil {
			return fmt.Sprintf("%s(%s)", r.Kind, r.Item.ID())
		}
	case RequestGet, RequestRemove:
		return fmt.Sprintf("%s(%s)", r.Kind, r.ID)
	}
	return string(r.Kind)
}

type requestWire struct {
	Kind RequestKind `json:"kind"`
	Item *Envelope   `json:"item,omitempty"`
	ID   *ItemID     `json:"id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Request) MarshalJSON() ([]byte, error) {
	w := requestWire{Kind: r.Kind}
	switch r.Kind {
	case RequestAdd, RequestUpdate:
		if r.Item == nil {
			return nil, fmt.Errorf("%s request without item", r.Kind)
		}
		w.Item = &Envelope{Item: r.Item}
	case RequestGet, RequestRemove:
		id := r.ID
		w.ID = &id
	case RequestGetAll:
	default:
		return nil, fmt.Errorf("%w: request %q", ErrUnknownKind, r.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Request) UnmarshalJSON(b []byte) error {
	var w requestWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Request{Kind: w.Kind}
	switch w.Kind {
	case RequestAdd, RequestUpdate:
		if w.Item == nil || w.Item.Item == nil {
			return fmt.Errorf("%s request without item", w.Kind)
		}
		r.Item = w.Item.Item
	case RequestGet, RequestRemove:
		if w.ID == nil {
			return fmt.Errorf("%s request without id", w.Kind)
		}
		r.ID = *w.ID
	case RequestGetAll:
	default:
		return fmt.Errorf("%w: request %q", ErrUnknownKind, w.Kind)
	}
	return nil
}

// =============================================================================
// REPLY
// =============================================================================

// ReplyKind names the shape of a remote store reply.
type ReplyKind string

const (
	ReplyAddedItem    ReplyKind = "added_item"
	ReplyReturnedItem ReplyKind = "returned_item"
	ReplyAck          ReplyKind = "ack"
	ReplyAll          ReplyKind = "reply_all"
	ReplyError        ReplyKind = "error"
)

// Reply is the remote store's answer to a Request.
type Reply struct {
	Kind    ReplyKind
	ID      ItemID  // AddedItem
	Item    Item    // ReturnedItem
	All     *Ledger // ReplyAll
	Message string  // Error
}

func AddedItem(id ItemID) Reply { return Reply{Kind: ReplyAddedItem, ID: id} }
func ReturnedItem(item Item) Reply { return Reply{Kind: ReplyReturnedItem, Item: item} }
func Ack() Reply { return Reply{Kind: ReplyAck} }
func AllItems(l *Ledger) Reply { return Reply{Kind: ReplyAll, All: l} }
func ErrorReply(msg string) Reply { return Reply{Kind: ReplyError, Message: msg} }

type replyWire struct {
	Kind    ReplyKind `json:"kind"`
	ID      *ItemID   `json:"id,omitempty"`
	Item    *Envelope `json:"item,omitempty"`
	All     *Ledger   `json:"all,omitempty"`
	Message string    `json:"message,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Reply) MarshalJSON() ([]byte, error) {
	w := replyWire{Kind: r.Kind}
	switch r.Kind {
	case ReplyAddedItem:
		id := r.ID
		w.ID = &id
	case ReplyReturnedItem:
		w.Item = &Envelope{Item: r.Item}
	case ReplyAll:
		w.All = r.All
	case ReplyError:
		w.Message = r.Message
	case ReplyAck:
	default:
		return nil, fmt.Errorf("%w: reply %q", ErrUnknownKind, r.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Reply) UnmarshalJSON(b []byte) error {
	var w replyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Reply{Kind: w.Kind, All: w.All, Message: w.Message}
	switch w.Kind {
	case ReplyAddedItem:
		if w.ID == nil {
			return fmt.Errorf("%s reply without id", w.Kind)
		}
		r.ID = *w.ID
	case ReplyReturnedItem:
		if w.Item == nil || w.Item.Item == nil {
			return fmt.Errorf("%s reply without item", w.Kind)
		}
		r.Item = w.Item.Item
	case ReplyAll:
		if w.All == nil {
			return fmt.Errorf("%s reply without ledger", w.Kind)
		}
	case ReplyAck, ReplyError:
	default:
		return fmt.Errorf("%w: reply %q", ErrUnknownKind, w.Kind)
	}
	return nil
}

// Err converts an Error reply into a Go error.
func (r Reply) Err() error {
	if r.Kind != ReplyError {
		return nil
	}
	return &RemoteError{Message: r.Message}
}

// RemoteError is an error reported by the remote store.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote store: " + e.Message
}
