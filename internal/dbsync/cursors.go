// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dbsync

import (
	"fmt"
	"strconv"

	"github.com/jeranaias/proxima-tui/internal/database"
)

// =============================================================================
// CURSOR
// =============================================================================

// Cursor is an optional ledger position.
type Cursor struct {
	Pos   int
	Valid bool
}

// None is the empty cursor.
var None = Cursor{}

// Some returns a cursor holding pos.
func Some(pos int) Cursor {
	return Cursor{Pos: pos, Valid: true}
}

// Get returns the position and whether one is set.
func (c Cursor) Get() (int, bool) {
	return c.Pos, c.Valid
}

// Is reports whether the cursor holds pos.
func (c Cursor) Is(pos int) bool {
	return c.Valid && c.Pos == pos
}

// Within reports whether the cursor holds a position in [0, n).
func (c Cursor) Within(n int) bool {
	return c.Valid && c.Pos >= 0 && c.Pos < n
}

func (c Cursor) String() string {
	if !c.Valid {
		return "none"
	}
	return strconv.Itoa(c.Pos)
}

// bumpFrom advances the cursor by one when it holds a position >= pos.
func (c Cursor) bumpFrom(pos int) Cursor {
	if c.Valid && c.Pos >= pos {
		c.Pos++
	}
	return c
}

// =============================================================================
// CURSORS
// =============================================================================

// Cursors is the user's selection state. Every set cursor refers to a ledger
// position of the category named by its field.
type Cursors struct {
	Tab int

	Chat Cursor

	// AccessMode is never unset; position 0 always exists.
	AccessMode                int
	AccessModeForModification Cursor
	AccessModeTags            database.Positions

	Tag       Cursor
	Tags      database.Positions
	ParentTag Cursor

	Config                 Cursor
	ConfigForModification  Cursor
	Setting                Cursor // index into the settings of ConfigForModification
	SettingForModification *database.ChatSetting
}

// Zero returns the initial selection.
func Zero() Cursors {
	return Cursors{
		AccessModeTags: database.NewPositions(),
		Tags:           database.NewPositions(),
	}
}

// Clone returns an independent copy.
func (c Cursors) Clone() Cursors {
	out := c
	out.AccessModeTags = c.AccessModeTags.Clone()
	out.Tags = c.Tags.Clone()
	if c.SettingForModification != nil {
		s := c.SettingForModification.Clone()
		out.SettingForModification = &s
	}
	return out
}

// Equal reports whether two selections are the same.
func (c Cursors) Equal(o Cursors) bool {
	if (c.SettingForModification == nil) != (o.SettingForModification == nil) {
		return false
	}
	if c.SettingForModification != nil && c.SettingForModification.Kind != o.SettingForModification.Kind {
		return false
	}
	return c.Tab == o.Tab &&
		c.Chat == o.Chat &&
		c.AccessMode == o.AccessMode &&
		c.AccessModeForModification == o.AccessModeForModification &&
		c.AccessModeTags.Equal(o.AccessModeTags) &&
		c.Tag == o.Tag &&
		c.Tags.Equal(o.Tags) &&
		c.ParentTag == o.ParentTag &&
		c.Config == o.Config &&
		c.ConfigForModification == o.ConfigForModification &&
		c.Setting == o.Setting
}

// Validate checks that every set cursor refers to an existing entity.
func (c Cursors) Validate(l *database.Ledger) error {
	check := func(name string, cur Cursor, cat database.Category) error {
		if cur.Valid && !cur.Within(l.Len(cat)) {
			return fmt.Errorf("%w: %s=%d outside %s[0,%d)", ErrDanglingCursor, name, cur.Pos, cat, l.Len(cat))
		}
		return nil
	}
	checkSet := func(name string, set database.Positions, cat database.Category) error {
		for _, pos := range set.Sorted() {
			if err := check(name, Some(pos), cat); err != nil {
				return err
			}
		}
		return nil
	}

	if err := check("access_mode", Some(c.AccessMode), database.CategoryAccessMode); err != nil {
		return err
	}
	for _, err := range []error{
		check("chat", c.Chat, database.CategoryChat),
		check("access_mode_for_modification", c.AccessModeForModification, database.CategoryAccessMode),
		check("tag", c.Tag, database.CategoryTag),
		check("parent_tag", c.ParentTag, database.CategoryTag),
		check("config", c.Config, database.CategoryChatConfig),
		check("config_for_modification", c.ConfigForModification, database.CategoryChatConfig),
		checkSet("tags", c.Tags, database.CategoryTag),
		checkSet("access_mode_tags", c.AccessModeTags, database.CategoryTag),
	} {
		if err != nil {
			return err
		}
	}

	if c.Setting.Valid {
		if !c.ConfigForModification.Valid {
			return fmt.Errorf("%w: setting=%d without a config under edit", ErrDanglingCursor, c.Setting.Pos)
		}
		cfg := l.Config(c.ConfigForModification.Pos)
		if !c.Setting.Within(len(cfg.Settings)) {
			return fmt.Errorf("%w: setting=%d outside %s settings", ErrDanglingCursor, c.Setting.Pos, cfg.ID())
		}
	}
	return nil
}

// bumpFrom shifts every cursor of category cat that is >= pos by one.
func (c *Cursors) bumpFrom(cat database.Category, pos int) {
	switch cat {
	case database.CategoryChat:
		c.Chat = c.Chat.bumpFrom(pos)
	case database.CategoryTag:
		c.Tag = c.Tag.bumpFrom(pos)
		c.ParentTag = c.ParentTag.bumpFrom(pos)
		bump := func(p int) int {
			if p >= pos {
				return p + 1
			}
			return p
		}
		c.AccessModeTags = c.AccessModeTags.Map(bump)
		c.Tags = c.Tags.Map(bump)
	case database.CategoryAccessMode:
		c.AccessModeForModification = c.AccessModeForModification.bumpFrom(pos)
		if c.AccessMode >= pos {
			c.AccessMode++
		}
	case database.CategoryChatConfig:
		c.Config = c.Config.bumpFrom(pos)
		c.ConfigForModification = c.ConfigForModification.bumpFrom(pos)
	case database.CategoryDevice, database.CategoryFile, database.CategoryFolder,
		database.CategoryNotification, database.CategoryUserData:
	default:
		panic(fmt.Sprintf("dbsync: unknown category %d", int(cat)))
	}
}
