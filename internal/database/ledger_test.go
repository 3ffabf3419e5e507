// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/model"
)

func TestNewLedger_SeedsDefaultAccessMode(t *testing.T) {
	l := NewLedger("alice")

	require.Equal(t, 1, l.Len(CategoryAccessMode))
	assert.Equal(t, DefaultAccessModeName, l.AccessMode(0).Name)
	assert.Equal(t, "alice", l.User.Pseudonym)
	assert.Equal(t, ChatID(0), l.NextID(CategoryChat))
	assert.Equal(t, AccessModeID(1), l.NextID(CategoryAccessMode))
}

func TestLedger_AppendRawStampsSlot(t *testing.T) {
	l := NewLedger("alice")
	tag := NewTag("work", "", nil)
	tag.Pos = 7

	id := l.AppendRaw(tag)

	assert.Equal(t, TagID(0), id)
	assert.Equal(t, 0, tag.Pos)
	assert.NoError(t, l.Check())
}

func TestLedger_InsertOrUpdate(t *testing.T) {
	l := NewLedger("alice")
	l.AppendRaw(NewTag("a", "", nil))
	l.AppendRaw(NewTag("b", "", nil))

	// Overwrite in range.
	assert.True(t, l.InsertOrUpdate(&Tag{Pos: 1, Name: "B"}))
	assert.Equal(t, "B", l.Tag(1).Name)
	assert.Equal(t, 2, l.Len(CategoryTag))

	// Append at the end.
	assert.True(t, l.InsertOrUpdate(&Tag{Pos: 2, Name: "c"}))
	assert.Equal(t, 3, l.Len(CategoryTag))

	// Reject a gap.
	assert.False(t, l.InsertOrUpdate(&Tag{Pos: 5, Name: "gap"}))
	assert.Equal(t, 3, l.Len(CategoryTag))
	assert.NoError(t, l.Check())
}

func TestLedger_UserDataIsReplaced(t *testing.T) {
	l := NewLedger("alice")
	assert.True(t, l.InsertOrUpdate(&UserData{Pseudonym: "alice", DisplayName: "Alice"}))
	assert.Equal(t, "Alice", l.User.Label())
	assert.Equal(t, 1, l.Len(CategoryUserData))
}

func TestLedger_RemoveKeepsPositions(t *testing.T) {
	l := NewLedger("alice")
	for i := 0; i < 3; i++ {
		l.AppendRaw(&Notification{Message: "n"})
	}

	require.True(t, l.Remove(NotificationID(1)))
	assert.False(t, l.Remove(NotificationID(1)), "second removal is a no-op")
	assert.False(t, l.Remove(NotificationID(9)))

	assert.Equal(t, 3, l.Len(CategoryNotification))
	assert.True(t, l.IsRemoved(NotificationID(1)))
	assert.Equal(t, 2, l.Notification(2).Pos)

	var live []int
	l.Each(CategoryNotification, func(item Item) bool {
		live = append(live, item.ID().Pos)
		return true
	})
	assert.Equal(t, []int{0, 2}, live)

	// An overwrite revives the slot.
	l.InsertOrUpdate(&Notification{Pos: 1, Message: "back"})
	assert.False(t, l.IsRemoved(NotificationID(1)))
}

func TestLedger_CloneIsDeep(t *testing.T) {
	l := NewLedger("alice")
	l.AppendRaw(NewChat(0, model.NewContext(model.NewUserPart("hi"))))

	c := l.Clone()
	c.Chat(0).Context.AddUser("again")
	c.AccessMode(0).Tags.Add(3)
	c.Remove(ChatID(0))

	assert.Equal(t, 1, l.Chat(0).Context.Len())
	assert.Equal(t, 0, l.AccessMode(0).Tags.Len())
	assert.False(t, l.IsRemoved(ChatID(0)))
}

func TestLedger_CheckDetectsMismatch(t *testing.T) {
	l := NewLedger("alice")
	l.AppendRaw(NewTag("a", "", nil))
	l.Tags[0].Pos = 4

	assert.ErrorIs(t, l.Check(), ErrDensity)
}

func TestNormalizeName(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", NormalizeName("  cafe\u0301 "))
	assert.Equal(t, NewTag("caf\u00e9", "", nil).Name, NewTag("cafe\u0301", "", nil).Name)
}

func TestChatConfig_Upsert(t *testing.T) {
	c := NewChatConfig("default", 0)
	i := c.Upsert(-1, Temperature(70))
	assert.Equal(t, 0, i)
	c.Upsert(5, ToolSetting("calculator"))
	c.Upsert(0, Temperature(20))

	require.Len(t, c.Settings, 2)
	assert.Equal(t, 20, c.Settings[0].Value)
	assert.Equal(t, []string{"calculator"}, c.Tools())

	_, ok := c.Setting(2)
	assert.False(t, ok)
}
