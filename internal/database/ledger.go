// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the client's copy of the user's entities. Every positional
// category is dense: slot i holds the entity whose id is i.
//
// A Ledger is not safe for concurrent use; it is owned by a single reducer.
type Ledger struct {
	Chats         []*Chat         `json:"chats"`
	Tags          []*Tag          `json:"tags"`
	AccessModes   []*AccessMode   `json:"access_modes"`
	Configs       []*ChatConfig   `json:"configs"`
	Devices       []*Device       `json:"devices"`
	Files         []*File         `json:"files"`
	Folders       []*Folder       `json:"folders"`
	Notifications []*Notification `json:"notifications"`
	User          UserData        `json:"user"`

	// Removed holds tombstoned positions. Removal never renumbers.
	Removed []ItemID `json:"removed,omitempty"`

	removed mapset.Set[ItemID]
}

// NewLedger returns a ledger holding the default access mode.
func NewLedger(pseudonym string) *Ledger {
	l := &Ledger{User: UserData{Pseudonym: pseudonym}}
	l.AppendRaw(NewAccessMode(DefaultAccessModeName))
	return l
}

// Len returns the number of occupied positions of a category. The user
// data singleton always reports 1.
func (l *Ledger) Len(c Category) int {
	switch c {
	case CategoryChat:
		return len(l.Chats)
	case CategoryTag:
		return len(l.Tags)
	case CategoryAccessMode:
		return len(l.AccessModes)
	case CategoryChatConfig:
		return len(l.Configs)
	case CategoryDevice:
		return len(l.Devices)
	case CategoryFile:
		return len(l.Files)
	case CategoryFolder:
		return len(l.Folders)
	case CategoryNotification:
		return len(l.Notifications)
	case CategoryUserData:
		return 1
	}
	panic(fmt.Sprintf("ledger: unknown category %d", int(c)))
}

// NextID returns the id the next appended entity of c will receive.
func (l *Ledger) NextID(c Category) ItemID {
	if !c.Positional() {
		return ItemID{Category: c}
	}
	return ItemID{Category: c, Pos: l.Len(c)}
}

// Contains reports whether id addresses an occupied slot.
func (l *Ledger) Contains(id ItemID) bool {
	if !id.Category.Positional() {
		return id.Category == CategoryUserData
	}
	return id.Pos >= 0 && id.Pos < l.Len(id.Category)
}

// Get returns the entity at id.
func (l *Ledger) Get(id ItemID) (Item, bool) {
	if !l.Contains(id) {
		return nil, false
	}
	switch id.Category {
	case CategoryChat:
		return l.Chats[id.Pos], true
	case CategoryTag:
		return l.Tags[id.Pos], true
	case CategoryAccessMode:
		return l.AccessModes[id.Pos], true
	case CategoryChatConfig:
		return l.Configs[id.Pos], true
	case CategoryDevice:
		return l.Devices[id.Pos], true
	case CategoryFile:
		return l.Files[id.Pos], true
	case CategoryFolder:
		return l.Folders[id.Pos], true
	case CategoryNotification:
		return l.Notifications[id.Pos], true
	case CategoryUserData:
		return &l.User, true
	}
	return nil, false
}

// Chat returns chat pos, or nil.
func (l *Ledger) Chat(pos int) *Chat {
	if pos < 0 || pos >= len(l.Chats) {
		return nil
	}
	return l.Chats[pos]
}

// Tag returns tag pos, or nil.
func (l *Ledger) Tag(pos int) *Tag {
	if pos < 0 || pos >= len(l.Tags) {
		return nil
	}
	return l.Tags[pos]
}

// AccessMode returns access mode pos, or nil.
func (l *Ledger) AccessMode(pos int) *AccessMode {
	if pos < 0 || pos >= len(l.AccessModes) {
		return nil
	}
	return l.AccessModes[pos]
}

// Config returns chat configuration pos, or nil.
func (l *Ledger) Config(pos int) *ChatConfig {
	if pos < 0 || pos >= len(l.Configs) {
		return nil
	}
	return l.Configs[pos]
}

// Notification returns notification pos, or nil.
func (l *Ledger) Notification(pos int) *Notification {
	if pos < 0 || pos >= len(l.Notifications) {
		return nil
	}
	return l.Notifications[pos]
}

// =============================================================================
// MUTATION
// =============================================================================

// AppendRaw pushes item onto its category and stamps it with the slot it
// landed in. For the user data singleton it replaces the current value.
func (l *Ledger) AppendRaw(item Item) ItemID {
	next := l.NextID(item.Category())
	if item.Category().Positional() && item.ID().Pos != next.Pos {
		glog.Warningf("[ledger] append of %s lands at %s", item.ID(), next)
	}
	item.SetID(next)
	l.unremove(next)

	switch v := item.(type) {
	case *Chat:
		l.Chats = append(l.Chats, v)
	case *Tag:
		l.Tags = append(l.Tags, v)
	case *AccessMode:
		l.AccessModes = append(l.AccessModes, v)
	case *ChatConfig:
		l.Configs = append(l.Configs, v)
	case *Device:
		l.Devices = append(l.Devices, v)
	case *File:
		l.Files = append(l.Files, v)
	case *Folder:
		l.Folders = append(l.Folders, v)
	case *Notification:
		l.Notifications = append(l.Notifications, v)
	case *UserData:
		l.User = *v
	default:
		panic(fmt.Sprintf("ledger: unsupported item %T", item))
	}
	return next
}

// InsertOrUpdate writes item at its own position. An in-range position is
// overwritten and a position equal to the length appends. A position past
// the end would leave a gap, so the ledger is left untouched and false is
// returned.
func (l *Ledger) InsertOrUpdate(item Item) bool {
	id := item.ID()
	if !id.Category.Positional() {
		l.AppendRaw(item)
		return true
	}
	n := l.Len(id.Category)
	switch {
	case id.Pos < 0 || id.Pos > n:
		return false
	case id.Pos == n:
		l.AppendRaw(item)
		return true
	}

	switch v := item.(type) {
	case *Chat:
		l.Chats[id.Pos] = v
	case *Tag:
		l.Tags[id.Pos] = v
	case *AccessMode:
		l.AccessModes[id.Pos] = v
	case *ChatConfig:
		l.Configs[id.Pos] = v
	case *Device:
		l.Devices[id.Pos] = v
	case *File:
		l.Files[id.Pos] = v
	case *Folder:
		l.Folders[id.Pos] = v
	case *Notification:
		l.Notifications[id.Pos] = v
	default:
		panic(fmt.Sprintf("ledger: unsupported item %T", item))
	}
	l.unremove(id)
	return true
}

// Remove tombstones id. The slot stays occupied so no other entity moves.
func (l *Ledger) Remove(id ItemID) bool {
	if !id.Category.Positional() || !l.Contains(id) {
		return false
	}
	if l.removed == nil {
		l.removed = mapset.NewThreadUnsafeSet[ItemID]()
		for _, r := range l.Removed {
			l.removed.Add(r)
		}
	}
	if !l.removed.Add(id) {
		return false
	}
	l.Removed = append(l.Removed, id)
	return true
}

// IsRemoved reports whether id has been tombstoned.
func (l *Ledger) IsRemoved(id ItemID) bool {
	if l.removed != nil {
		return l.removed.Contains(id)
	}
	for _, r := range l.Removed {
		if r == id {
			return true
		}
	}
	return false
}

func (l *Ledger) unremove(id ItemID) {
	if len(l.Removed) == 0 {
		return
	}
	kept := l.Removed[:0]
	for _, r := range l.Removed {
		if r != id {
			kept = append(kept, r)
		}
	}
	l.Removed = kept
	if l.removed != nil {
		l.removed.Remove(id)
	}
}

// =============================================================================
// INSPECTION
// =============================================================================

// Each calls fn for every live entity of c in position order until fn
// returns false.
func (l *Ledger) Each(c Category, fn func(Item) bool) {
	for pos := 0; pos < l.Len(c); pos++ {
		id := ItemID{c, pos}
		if !c.Positional() {
			id = UserDataID()
		}
		if l.IsRemoved(id) {
			continue
		}
		item, _ := l.Get(id)
		if !fn(item) {
			return
		}
	}
}

// Check verifies that every slot's own id equals its index.
func (l *Ledger) Check() error {
	for _, c := range Categories {
		if !c.Positional() {
			continue
		}
		for pos := 0; pos < l.Len(c); pos++ {
			item, _ := l.Get(ItemID{c, pos})
			if item == nil {
				return fmt.Errorf("%w: %s is empty", ErrDensity, ItemID{c, pos})
			}
			if got := item.ID(); got.Pos != pos {
				return fmt.Errorf("%w: slot %d of %s holds %s", ErrDensity, pos, c, got)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{User: l.User}
	out.Chats = cloneSlice(l.Chats)
	out.Tags = cloneSlice(l.Tags)
	out.AccessModes = cloneSlice(l.AccessModes)
	out.Configs = cloneSlice(l.Configs)
	out.Devices = cloneSlice(l.Devices)
	out.Files = cloneSlice(l.Files)
	out.Folders = cloneSlice(l.Folders)
	out.Notifications = cloneSlice(l.Notifications)
	out.Removed = append([]ItemID(nil), l.Removed...)
	return out
}

func cloneSlice[T Item](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = v.Clone().(T)
	}
	return out
}
