// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

// =============================================================================
// STATE
// =============================================================================

// State is everything the client knows: the ledger, the selection and the
// streams in flight.
type State struct {
	DB      *database.Ledger
	Cursors dbsync.Cursors
	Streams *stream.Accumulator

	// Pending holds optimistic ids not yet reconciled with the server.
	Pending mapset.Set[database.ItemID]

	// Created is the id assigned by the most recent CreateItem.
	Created database.ItemID

	// Err is the non-fatal error raised by the most recent transition.
	Err error
}

// New returns the state of a fresh client for pseudonym.
func New(pseudonym string) State {
	return State{
		DB:      database.NewLedger(pseudonym),
		Cursors: dbsync.Zero(),
		Streams: stream.NewAccumulator(),
		Pending: mapset.NewThreadUnsafeSet[database.ItemID](),
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.DB = s.DB.Clone()
	out.Cursors = s.Cursors.Clone()
	out.Streams = s.Streams.Clone()
	out.Pending = s.Pending.Clone()
	return out
}

// =============================================================================
// REDUCER
// =============================================================================

// Reduce applies a to s and returns the next state. It takes ownership of
// s: the ledger and accumulator are mutated in place. Idle streams are
// collected before every transition.
func Reduce(s State, a Action, now time.Time) State {
	s.Streams.Collect(now)
	s.Err = nil
	c := &s.Cursors

	switch a := a.(type) {
	case SetTab:
		c.Tab = a.Tab
	case SetChat:
		c.Chat = live(s.DB, database.CategoryChat, a.Chat)
	case SetAccessMode:
		if !live(s.DB, database.CategoryAccessMode, dbsync.Some(a.AccessMode)).Valid {
			glog.Warningf("[state] access mode %d does not exist", a.AccessMode)
			break
		}
		if a.AccessMode != c.AccessMode {
			c.AccessMode = a.AccessMode
			c.Chat = dbsync.None
			c.Tag = dbsync.None
			c.ParentTag = dbsync.None
		}
	case ChangeUsedChatConfig:
		c.Config = live(s.DB, database.CategoryChatConfig, a.Config)
	case SetModifiedConfig:
		c.ConfigForModification = live(s.DB, database.CategoryChatConfig, a.Config)
		c.Setting = dbsync.None
		c.SettingForModification = nil
	case SetConfigSettingID:
		c.Setting = dbsync.None
		c.SettingForModification = nil
		if cfg := configUnderEdit(s); cfg != nil {
			c.Setting = within(a.Setting, len(cfg.Settings))
			if setting, ok := cfg.Setting(c.Setting.Pos); ok && c.Setting.Valid {
				copied := setting.Clone()
				c.SettingForModification = &copied
			}
		}
	case SetCurrentSetting:
		c.SettingForModification = nil
		if a.Setting != nil {
			copied := a.Setting.Clone()
			c.SettingForModification = &copied
		}
	case SetModifiedAM:
		c.AccessModeForModification = live(s.DB, database.CategoryAccessMode, a.AccessMode)
		c.AccessModeTags = database.NewPositions()
		if pos, ok := c.AccessModeForModification.Get(); ok {
			c.AccessModeTags = s.DB.AccessMode(pos).Tags.Clone()
		}
	case SetModifiedTag:
		c.Tag = live(s.DB, database.CategoryTag, a.Tag)
		c.ParentTag = dbsync.None
		if pos, ok := c.Tag.Get(); ok && s.DB.Tag(pos).Parent != nil {
			c.ParentTag = live(s.DB, database.CategoryTag, dbsync.Some(*s.DB.Tag(pos).Parent))
		}
	case SetParentTag:
		c.ParentTag = live(s.DB, database.CategoryTag, a.Tag)
	case SetTagsForAM:
		c.AccessModeTags = existing(s.DB, a.Tags)
	case AddToTagsForAM:
		if live(s.DB, database.CategoryTag, dbsync.Some(a.Tag)).Valid {
			c.AccessModeTags.Add(a.Tag)
		}
	case RemoveFromTagsForAM:
		c.AccessModeTags.Remove(a.Tag)
	case SetTags:
		c.Tags = existing(s.DB, a.Tags)

	case CreateItem:
		s = create(s, a)
	case AddItem:
		s = reconcile(s, a)
	case ApplyUpdates:
		s.Cursors = dbsync.ApplyUpdates(s.DB, a.Updates, s.Cursors)
		for _, u := range a.Updates {
			s.Pending.Remove(u.ID)
		}
	case UpdateItem:
		if !s.DB.InsertOrUpdate(a.Item.Clone()) {
			glog.Warningf("[state] update of %s rejected", a.Item.ID())
			s.Err = database.ErrNotFound
		}
	case RemoveItem:
		if !s.DB.Remove(a.ID) {
			s.Err = database.ErrNotFound
			break
		}
		deselect(&s.Cursors, a.ID)
	case ReplaceAll:
		tab := c.Tab
		s.DB = a.Ledger.Clone()
		s.Cursors = dbsync.Zero()
		s.Cursors.Tab = tab
		s.Streams.Reset()
		s.Pending.Clear()
	case StreamEvent:
		if err := s.Streams.Apply(s.DB, a.Event, now); err != nil {
			glog.Warningf("[state] dropping %s: %v", a.Event, err)
			s.Err = err
		}
	default:
		glog.Errorf("[state] unhandled action %T", a)
	}
	clampCursors(&s)
	return s
}

func create(s State, a CreateItem) State {
	id := s.DB.AppendRaw(a.Item.Clone())
	s.Pending.Add(id)
	s.Created = id
	glog.V(2).Infof("[state] optimistic %s", id)
	if !a.Select {
		return s
	}
	c := &s.Cursors
	switch id.Category {
	case database.CategoryChat:
		c.Chat = dbsync.Some(id.Pos)
	case database.CategoryTag:
		c.Tag = dbsync.Some(id.Pos)
	case database.CategoryAccessMode:
		c.AccessModeForModification = dbsync.Some(id.Pos)
	case database.CategoryChatConfig:
		c.ConfigForModification = dbsync.Some(id.Pos)
		c.Setting = dbsync.None
		c.SettingForModification = nil
	}
	return s
}

// reconcile applies an AddItem. The local id is the creation-time slot while
// it is still pending; once something else has overwritten that slot the
// local id is recomputed from the current ledger.
func reconcile(s State, a AddItem) State {
	if a.Delta.Item == nil {
		glog.Warningf("[state] add of %s carries no item", a.Local)
		return s
	}
	local := a.Local
	if !s.Pending.Contains(local) {
		local = s.DB.NextID(local.Category)
		glog.V(2).Infof("[state] %s no longer pending, reconciling as %s", a.Local, local)
	}
	s.Cursors = dbsync.ApplyAdd(s.DB, local, a.Delta, s.Cursors)

	s.Pending.Remove(a.Local)
	s.Pending.Remove(local)
	s.Pending.Remove(a.Delta.ID)
	for _, u := range a.Delta.Updates {
		s.Pending.Remove(u.ID)
	}
	return s
}

func within(c dbsync.Cursor, n int) dbsync.Cursor {
	if c.Valid && !c.Within(n) {
		glog.V(2).Infof("[state] cursor %s outside [0,%d), clearing", c, n)
		return dbsync.None
	}
	return c
}

// live drops c when it points outside cat or at a tombstoned entity.
func live(l *database.Ledger, cat database.Category, c dbsync.Cursor) dbsync.Cursor {
	c = within(c, l.Len(cat))
	if c.Valid && l.IsRemoved(database.ItemID{Category: cat, Pos: c.Pos}) {
		glog.V(2).Infof("[state] %s(%d) is removed, clearing", cat, c.Pos)
		return dbsync.None
	}
	return c
}

// existing keeps the tag positions of p that are live.
func existing(l *database.Ledger, p database.Positions) database.Positions {
	out := database.NewPositions()
	for _, pos := range p.Sorted() {
		if live(l, database.CategoryTag, dbsync.Some(pos)).Valid {
			out.Add(pos)
		}
	}
	return out
}

// clampCursors drops every selection that no longer names a live entity.
// Remaps of in-flight creates can point past the ledger until the later
// create lands; the setting cursor goes once the config under edit holds
// fewer settings. A setting being written is kept and appended on save.
func clampCursors(s *State) {
	c := &s.Cursors
	l := s.DB
	if !live(l, database.CategoryAccessMode, dbsync.Some(c.AccessMode)).Valid {
		glog.V(2).Infof("[state] access mode %d is gone, falling back to 0", c.AccessMode)
		c.AccessMode = 0
	}
	c.Chat = live(l, database.CategoryChat, c.Chat)
	c.AccessModeForModification = live(l, database.CategoryAccessMode, c.AccessModeForModification)
	c.Tag = live(l, database.CategoryTag, c.Tag)
	c.ParentTag = live(l, database.CategoryTag, c.ParentTag)
	c.Config = live(l, database.CategoryChatConfig, c.Config)
	c.ConfigForModification = live(l, database.CategoryChatConfig, c.ConfigForModification)
	c.Tags = existing(l, c.Tags)
	c.AccessModeTags = existing(l, c.AccessModeTags)

	if c.Setting.Valid {
		cfg := configUnderEdit(*s)
		if cfg == nil || !c.Setting.Within(len(cfg.Settings)) {
			glog.V(2).Infof("[state] setting %s no longer exists, clearing", c.Setting)
			c.Setting = dbsync.None
		}
	}
}

func configUnderEdit(s State) *database.ChatConfig {
	pos, ok := s.Cursors.ConfigForModification.Get()
	if !ok {
		return nil
	}
	return s.DB.Config(pos)
}

func deselect(c *dbsync.Cursors, id database.ItemID) {
	switch id.Category {
	case database.CategoryChat:
		if c.Chat.Is(id.Pos) {
			c.Chat = dbsync.None
		}
	case database.CategoryTag:
		if c.Tag.Is(id.Pos) {
			c.Tag = dbsync.None
		}
		if c.ParentTag.Is(id.Pos) {
			c.ParentTag = dbsync.None
		}
		c.Tags.Remove(id.Pos)
		c.AccessModeTags.Remove(id.Pos)
	case database.CategoryAccessMode:
		if c.AccessModeForModification.Is(id.Pos) {
			c.AccessModeForModification = dbsync.None
		}
	case database.CategoryChatConfig:
		if c.Config.Is(id.Pos) {
			c.Config = dbsync.None
		}
		if c.ConfigForModification.Is(id.Pos) {
			c.ConfigForModification = dbsync.None
			c.Setting = dbsync.None
		}
	}
}
