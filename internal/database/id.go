// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// CATEGORY
// =============================================================================

// Category names one of the entity collections of a ledger.
type Category int

const (
	CategoryChat Category = iota
	CategoryTag
	CategoryAccessMode
	CategoryChatConfig
	CategoryDevice
	CategoryFile
	CategoryFolder
	CategoryNotification
	CategoryUserData
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryChat,
	CategoryTag,
	CategoryAccessMode,
	CategoryChatConfig,
	CategoryDevice,
	CategoryFile,
	CategoryFolder,
	CategoryNotification,
	CategoryUserData,
}

var categoryNames = map[Category]string{
	CategoryChat:         "chat",
	CategoryTag:          "tag",
	CategoryAccessMode:   "access_mode",
	CategoryChatConfig:   "chat_config",
	CategoryDevice:       "device",
	CategoryFile:         "file",
	CategoryFolder:       "folder",
	CategoryNotification: "notification",
	CategoryUserData:     "user_data",
}

// String returns the wire name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Positional reports whether entities of the category are addressed by
// position. Only the user data singleton is not.
func (c Category) Positional() bool {
	return c != CategoryUserData
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if _, ok := categoryNames[c]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// ITEM ID
// =============================================================================

// ItemID is the positional identity of an entity: its category and its
// index within that category's collection.
type ItemID struct {
	Category Category `json:"category"`
	Pos      int      `json:"pos"`
}

func ChatID(pos int) ItemID { return ItemID{CategoryChat, pos} }
func TagID(pos int) ItemID { return ItemID{CategoryTag, pos} }
func AccessModeID(pos int) ItemID { return ItemID{CategoryAccessMode, pos} }
func ChatConfigID(pos int) ItemID { return ItemID{CategoryChatConfig, pos} }
func DeviceID(pos int) ItemID { return ItemID{CategoryDevice, pos} }
func FileID(pos int) ItemID { return ItemID{CategoryFile, pos} }
func FolderID(pos int) ItemID { return ItemID{CategoryFolder, pos} }
func NotificationID(pos int) ItemID { return ItemID{CategoryNotification, pos} }

// UserDataID returns the identity of the user data singleton.
func UserDataID() ItemID { return ItemID{Category: CategoryUserData} }

// String formats the id as Category(pos), e.g. "chat(3)".
func (id ItemID) String() string {
	if !id.Category.Positional() {
		return id.Category.String()
	}
	return fmt.Sprintf("%s(%d)", id.Category, id.Pos)
}

// Compare orders two ids of the same positional category. ok is false when
// the ids are not comparable.
func (id ItemID) Compare(other ItemID) (cmp int, ok bool) {
	if id.Category != other.Category || !id.Category.Positional() {
		return 0, false
	}
	switch {
	case id.Pos < other.Pos:
		return -1, true
	case id.Pos > other.Pos:
		return 1, true
	}
	return 0, true
}

// Offset returns the id n positions further along the same category.
func (id ItemID) Offset(n int) ItemID {
	id.Pos += n
	return id
}

// Range returns the ids in [from, to). It is empty when the categories
// differ, when the category is not positional, or when to <= from.
func Range(from, to ItemID) []ItemID {
	cmp, ok := from.Compare(to)
	if !ok || cmp >= 0 || from.Pos < 0 {
		return nil
	}
	out := make([]ItemID, 0, to.Pos-from.Pos)
	for pos := from.Pos; pos < to.Pos; pos++ {
		out = append(out, ItemID{from.Category, pos})
	}
	return out
}

// ParseItemID parses the String form of an id.
func ParseItemID(s string) (ItemID, error) {
	name, rest, found := strings.Cut(s, "(")
	c, err := ParseCategory(name)
	if err != nil {
		return ItemID{}, err
	}
	if !c.Positional() {
		if found {
			return ItemID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
		}
		return ItemID{Category: c}, nil
	}
	var pos int
	if !found || !strings.HasSuffix(rest, ")") {
		return ItemID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	if _, err := fmt.Sscanf(strings.TrimSuffix(rest, ")"), "%d", &pos); err != nil || pos < 0 {
		return ItemID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	return ItemID{c, pos}, nil
}

// MarshalJSON keeps the singleton id free of a meaningless position.
func (id ItemID) MarshalJSON() ([]byte, error) {
	type wire struct {
		Category Category `json:"category"`
		Pos      *int     `json:"pos,omitempty"`
	}
	w := wire{Category: id.Category}
	if id.Category.Positional() {
		pos := id.Pos
		w.Pos = &pos
	}
	return json.Marshal(w)
}
