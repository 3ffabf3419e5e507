// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/sanity-io/litter"
)

var (
	// ErrStoreClosed is returned when the store's context has ended.
	ErrStoreClosed = errors.New("state store closed")

	// ErrTransitionPanicked is returned when a transition panicked and the
	// action was dropped.
	ErrTransitionPanicked = errors.New("state transition panicked")
)

// DefaultQueueSize is the number of actions that can wait for the reducer.
const DefaultQueueSize = 64

// Options configures a Store.
type Options struct {
	// Strict re-raises panics from transitions instead of dropping the action.
	Strict bool

	// Clock supplies transition timestamps. Defaults to time.Now.
	Clock func() time.Time

	// QueueSize bounds the action queue. Defaults to DefaultQueueSize.
	QueueSize int
}

// Snapshot is a copy of the state after a transition. Every snapshot handed
// out by a Store is private to its receiver.
type Snapshot struct {
	State
	Version uint64
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{State: s.State.Clone(), Version: s.Version}
}

// Dump renders the snapshot for debugging.
func (s Snapshot) Dump() string {
	return litter.Options{
		StripPackageNames: true,
		HidePrivateFields: true,
		HideZeroValues:    true,
	}.Sdump(struct {
		Version int
		DB      any
		Cursors any
		Pending any
	}{int(s.Version), s.DB, s.Cursors, s.Pending.ToSlice()})
}

type envelope struct {
	action Action
	reply  chan result
}

type result struct {
	snap Snapshot
	err  error
}

// Store owns a State and applies actions to it one at a time on a single
// goroutine. Network work happens outside the store; its outcome re-enters
// as actions.
type Store struct {
	opts    Options
	actions chan envelope
	ctx     context.Context

	mu      sync.RWMutex
	latest  Snapshot
	subs    map[int]chan Snapshot
	nextSub int

	state   State
	version uint64
}

// NewStore starts the reducer goroutine. It stops when ctx is done.
func NewStore(ctx context.Context, initial State, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	s := &Store{
		opts:    opts,
		actions: make(chan envelope, opts.QueueSize),
		ctx:     ctx,
		subs:    make(map[int]chan Snapshot),
		state:   initial,
	}
	s.latest = Snapshot{State: initial.Clone()}
	go s.loop()
	return s
}

func (s *Store) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			for id, ch := range s.subs {
				close(ch)
				delete(s.subs, id)
			}
			s.mu.Unlock()
			return
		case env := <-s.actions:
			if env.action == nil {
				// Barrier queued by Current.
				if env.reply != nil {
					env.reply <- result{snap: s.Snapshot()}
				}
				continue
			}
			snap, err := s.step(env.action)
			if env.reply != nil {
				env.reply <- result{snap: snap, err: err}
			}
		}
	}
}

// step runs one transition on a copy so a panicking action leaves the
// state untouched.
func (s *Store) step(a Action) (snap Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("[store] %T panicked: %v\n%s", a, r, debug.Stack())
			if s.opts.Strict {
				panic(r)
			}
			err = fmt.Errorf("%w: %T: %v", ErrTransitionPanicked, a, r)
			snap = s.Snapshot()
		}
	}()

	next := Reduce(s.state.Clone(), a, s.opts.Clock())
	s.state = next
	s.version++
	s.publish(Snapshot{State: next.Clone(), Version: s.version})
	return Snapshot{State: next.Clone(), Version: s.version}, next.Err
}

func (s *Store) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	for _, ch := range s.subs {
		// Latest wins: drop a snapshot the subscriber has not read yet.
		select {
		case <-ch:
		default:
		}
		ch <- snap.clone()
	}
}

// Dispatch queues a for the reducer without waiting for it to be applied.
func (s *Store) Dispatch(a Action) {
	select {
	case s.actions <- envelope{action: a}:
	case <-s.ctx.Done():
		glog.V(2).Infof("[store] dropping %T after close", a)
	}
}

// Current waits until every action queued before the call has been applied
// and returns the resulting snapshot.
func (s *Store) Current() (Snapshot, error) {
	reply := make(chan result, 1)
	select {
	case s.actions <- envelope{reply: reply}:
	case <-s.ctx.Done():
		return s.Snapshot(), ErrStoreClosed
	}
	select {
	case r := <-reply:
		return r.snap, nil
	case <-s.ctx.Done():
		return s.Snapshot(), ErrStoreClosed
	}
}

// Apply queues a and waits for the resulting snapshot. The error is the
// transition's non-fatal error, ErrTransitionPanicked, or ErrStoreClosed.
func (s *Store) Apply(a Action) (Snapshot, error) {
	reply := make(chan result, 1)
	select {
	case s.actions <- envelope{action: a, reply: reply}:
	case <-s.ctx.Done():
		return s.Snapshot(), ErrStoreClosed
	}
	select {
	case r := <-reply:
		return r.snap, r.err
	case <-s.ctx.Done():
		return s.Snapshot(), ErrStoreClosed
	}
}

// Snapshot returns the most recent snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest.clone()
}

// Subscribe returns a channel receiving the newest snapshot after every
// transition, and a function that cancels the subscription. Slow readers
// only ever see the latest snapshot.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}
