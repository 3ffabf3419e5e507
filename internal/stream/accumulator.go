// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
)

const (
	// IdleTimeout is how long a chat's stream state survives without events.
	IdleTimeout = 3 * time.Minute

	// TurnGap is the silence after which a StartStream opens a new turn
	// even when the position is unchanged.
	TurnGap = time.Second
)

// TokenStream tracks the reply currently streaming into one chat.
type TokenStream struct {
	Applied      mapset.Set[uint64]
	LastActivity time.Time
	LastPosition model.Position
	LastTurn     int
}

func (s *TokenStream) clone() *TokenStream {
	out := *s
	out.Applied = s.Applied.Clone()
	return &out
}

// Accumulator folds streamed events into chat transcripts. It is owned by
// the reducer and is not safe for concurrent use.
type Accumulator struct {
	streams map[int]*TokenStream
}

// NewAccumulator returns an accumulator tracking no chats.
func NewAccumulator() *Accumulator {
	return &Accumulator{streams: make(map[int]*TokenStream)}
}

// Len returns the number of tracked chats.
func (a *Accumulator) Len() int {
	return len(a.streams)
}

// Tracked returns a copy of the stream state for chat.
func (a *Accumulator) Tracked(chat int) (TokenStream, bool) {
	s, ok := a.streams[chat]
	if !ok {
		return TokenStream{}, false
	}
	return *s.clone(), true
}

// Clone returns an independent copy.
func (a *Accumulator) Clone() *Accumulator {
	out := NewAccumulator()
	for chat, s := range a.streams {
		out.streams[chat] = s.clone()
	}
	return out
}

// Reset forgets every stream. Used when the ledger is replaced wholesale.
func (a *Accumulator) Reset() {
	a.streams = make(map[int]*TokenStream)
}

// Collect drops streams idle for longer than IdleTimeout and returns how
// many were dropped. Transcripts are not touched.
func (a *Accumulator) Collect(now time.Time) int {
	dropped := 0
	for chat, s := range a.streams {
		if now.Sub(s.LastActivity) > IdleTimeout {
			delete(a.streams, chat)
			dropped++
		}
	}
	if dropped > 0 {
		glog.V(2).Infof("[stream] collected %d idle streams", dropped)
	}
	return dropped
}

// Apply folds ev into the transcript of its chat in l.
//
// Tokens already applied to a tracked chat are ignored. A StartStream opens
// a new turn when the chat is untracked, has been quiet for more than
// TurnGap, or the position changed; otherwise it merges like a
// ContinueStream. An EndStream panics with *ProtocolViolationError.
func (a *Accumulator) Apply(l *database.Ledger, ev Event, now time.Time) error {
	switch ev.Kind {
	case KindStart, KindContinue:
	case KindEnd:
		v := &ProtocolViolationError{Chat: ev.Chat, Token: ev.Token}
		glog.Errorf("[stream] %v", v)
		panic(v)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}

	chat := l.Chat(ev.Chat)
	if chat == nil {
		return fmt.Errorf("%w: %d", ErrUnknownChat, ev.Chat)
	}

	s, tracked := a.streams[ev.Chat]
	if tracked && s.Applied.Contains(ev.Token) {
		glog.V(2).Infof("[stream] duplicate %s", ev)
		return nil
	}

	pos := ev.Position
	if pos == "" {
		pos = model.PositionAI
	}

	if ev.Kind == KindStart && (!tracked || now.Sub(s.LastActivity) > TurnGap || s.LastPosition != pos) {
		part := model.NewPart(pos, ev.Data)
		part.Timestamp = now
		a.streams[ev.Chat] = &TokenStream{
			Applied:      mapset.NewThreadUnsafeSet(ev.Token),
			LastActivity: now,
			LastPosition: pos,
			LastTurn:     chat.Context.Add(part),
		}
		return nil
	}

	if !tracked {
		s = &TokenStream{Applied: mapset.NewThreadUnsafeSet[uint64](), LastPosition: pos, LastTurn: -1}
		if last, ok := chat.Context.LastPosition(); ok {
			s.LastPosition = last
			s.LastTurn = chat.Context.Len() - 1
		}
		a.streams[ev.Chat] = s
	}

	turn := chat.Context.At(s.LastTurn)
	if turn == nil {
		// The transcript was replaced underneath the stream.
		part := model.NewPart(s.LastPosition)
		part.Timestamp = now
		s.LastTurn = chat.Context.Add(part)
		turn = chat.Context.At(s.LastTurn)
	}
	turn.Merge(ev.Data)
	s.Applied.Add(ev.Token)
	s.LastActivity = now
	return nil
}
