// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dbsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeRemote is an in-memory authoritative store.
type fakeRemote struct {
	ledger  *database.Ledger
	failAdd bool
	failGet map[database.ItemID]bool
	calls   []database.Request
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{ledger: database.NewLedger("alice"), failGet: map[database.ItemID]bool{}}
}

func (f *fakeRemote) Do(_ context.Context, req database.Request) (database.Reply, error) {
	f.calls = append(f.calls, req)
	switch req.Kind {
	case database.RequestAdd:
		if f.failAdd {
			return database.Reply{}, errors.New("connection refused")
		}
		return database.AddedItem(f.ledger.AppendRaw(req.Item.Clone())), nil
	case database.RequestGet:
		if f.failGet[req.ID] {
			return database.Reply{}, errors.New("timeout")
		}
		item, ok := f.ledger.Get(req.ID)
		if !ok {
			return database.ErrorReply("not found"), nil
		}
		return database.ReturnedItem(item.Clone()), nil
	}
	return database.Ack(), nil
}

func chatTitled(title string) *database.Chat {
	c := database.NewChat(0, model.NewContext(model.NewUserPart(title)))
	c.Title = title
	return c
}

func seedChats(l *database.Ledger, prefix string, n int) {
	for i := 0; i < n; i++ {
		l.AppendRaw(chatTitled(prefix))
	}
}

// =============================================================================
// DELTA TESTS
// =============================================================================

func TestDeltaForAdd_NoConflict(t *testing.T) {
	remote := newFakeRemote()
	seedChats(remote.ledger, "server", 2)

	d, err := DeltaForAdd(context.Background(), database.ChatID(2), chatTitled("mine"), remote.Do)

	require.NoError(t, err)
	assert.Empty(t, d.Updates)
	assert.Equal(t, database.ChatID(2), d.ID)
	assert.False(t, d.Conflict(database.ChatID(2)))
	assert.Len(t, remote.calls, 1)
}

func TestDeltaForAdd_AddFailureKeepsLocalID(t *testing.T) {
	remote := newFakeRemote()
	remote.failAdd = true

	d, err := DeltaForAdd(context.Background(), database.TagID(3), database.NewTag("t", "", nil), remote.Do)

	assert.Error(t, err)
	assert.Empty(t, d.Updates)
	assert.Equal(t, database.TagID(3), d.ID)
	assert.Equal(t, database.TagID(3), d.Item.ID())
}

func TestDeltaForAdd_RefusedAdd(t *testing.T) {
	do := func(context.Context, database.Request) (database.Reply, error) {
		return database.ErrorReply("quota exceeded"), nil
	}
	d, err := DeltaForAdd(context.Background(), database.TagID(0), database.NewTag("t", "", nil), do)

	var remoteErr *database.RemoteError
	assert.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, database.TagID(0), d.ID)
}

func TestDeltaForAdd_UnexpectedReply(t *testing.T) {
	do := func(context.Context, database.Request) (database.Reply, error) {
		return database.Ack(), nil
	}
	_, err := DeltaForAdd(context.Background(), database.TagID(0), database.NewTag("t", "", nil), do)
	assert.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestDeltaForAdd_ConflictBackfillsGap(t *testing.T) {
	remote := newFakeRemote()
	seedChats(remote.ledger, "server", 5)

	mine := chatTitled("mine")
	d, err := DeltaForAdd(context.Background(), database.ChatID(3), mine, remote.Do)

	require.NoError(t, err)
	assert.Equal(t, database.ChatID(5), d.ID)
	assert.Equal(t, database.ChatID(5), d.Item.ID())
	require.Len(t, d.Updates, 2)
	assert.Equal(t, database.ChatID(3), d.Updates[0].ID)
	assert.Equal(t, database.ChatID(4), d.Updates[1].ID)
	assert.Equal(t, "server", d.Updates[0].Item.Label())

	// The caller's entity is not restamped.
	assert.Equal(t, 0, mine.Pos)
}

func TestDeltaForAdd_FailedGetUsesPlaceholder(t *testing.T) {
	remote := newFakeRemote()
	seedChats(remote.ledger, "server", 5)
	remote.failGet[database.ChatID(4)] = true

	d, err := DeltaForAdd(context.Background(), database.ChatID(3), chatTitled("mine"), remote.Do)

	require.NoError(t, err)
	require.Len(t, d.Updates, 2)
	assert.Equal(t, "server", d.Updates[0].Item.Label())
	assert.Equal(t, "mine", d.Updates[1].Item.Label())
	assert.Equal(t, database.ChatID(4), d.Updates[1].Item.ID())
}

// =============================================================================
// RECONCILE TESTS
// =============================================================================

func TestApplyAdd_ChatNoConflict(t *testing.T) {
	remote := newFakeRemote()
	l := database.NewLedger("alice")
	cur := Zero()

	local := l.NextID(database.CategoryChat)
	l.AppendRaw(chatTitled("hello"))
	cur.Chat = Some(local.Pos)

	d, err := DeltaForAdd(context.Background(), local, l.Chat(local.Pos), remote.Do)
	require.NoError(t, err)
	cur = ApplyAdd(l, local, d, cur)

	assert.Equal(t, 1, l.Len(database.CategoryChat))
	assert.Equal(t, Some(0), cur.Chat)
	assert.NoError(t, l.Check())
	assert.NoError(t, cur.Validate(l))
}

func TestApplyAdd_ConflictRemapsChat(t *testing.T) {
	remote := newFakeRemote()
	seedChats(remote.ledger, "server", 5)

	l := database.NewLedger("alice")
	seedChats(l, "server", 3)
	local := l.NextID(database.CategoryChat)
	l.AppendRaw(chatTitled("mine"))
	cur := Zero()
	cur.Chat = Some(3)

	d, err := DeltaForAdd(context.Background(), local, l.Chat(3), remote.Do)
	require.NoError(t, err)
	cur = ApplyAdd(l, local, d, cur)

	assert.Equal(t, 6, l.Len(database.CategoryChat))
	assert.Equal(t, Some(5), cur.Chat)
	assert.Equal(t, "mine", l.Chat(5).Label())
	assert.Equal(t, "server", l.Chat(3).Label())
	assert.NoError(t, l.Check())
	assert.NoError(t, cur.Validate(l))
}

func TestApplyAdd_ConflictRemapsTags(t *testing.T) {
	remote := newFakeRemote()
	for _, name := range []string{"a", "b", "c", "d"} {
		remote.ledger.AppendRaw(database.NewTag(name, "", nil))
	}

	l := database.NewLedger("alice")
	l.AppendRaw(database.NewTag("a", "", nil))
	l.AppendRaw(database.NewTag("b", "", nil))
	local := l.NextID(database.CategoryTag)
	require.Equal(t, database.TagID(2), local)
	l.AppendRaw(database.NewTag("mine", "", database.IntPtr(1)))

	cur := Zero()
	cur.Tag = Some(2)
	cur.ParentTag = Some(2)
	cur.AccessModeTags = database.NewPositions(0, 2)
	cur.Tags = database.NewPositions(2)

	d, err := DeltaForAdd(context.Background(), local, l.Tag(2), remote.Do)
	require.NoError(t, err)
	require.Equal(t, database.TagID(4), d.ID)
	cur = ApplyAdd(l, local, d, cur)

	assert.Equal(t, 5, l.Len(database.CategoryTag))
	assert.Equal(t, "mine", l.Tag(4).Name)
	assert.Equal(t, "c", l.Tag(2).Name)
	assert.Equal(t, Some(4), cur.Tag)
	assert.Equal(t, Some(4), cur.ParentTag)
	assert.Equal(t, []int{0, 4}, cur.AccessModeTags.Sorted())
	assert.Equal(t, []int{4}, cur.Tags.Sorted())
	assert.NoError(t, cur.Validate(l))
}

func TestApplyAdd_AccessModeAndConfigCursorsFollow(t *testing.T) {
	l := database.NewLedger("alice")
	l.AppendRaw(database.NewAccessMode("work"))
	cur := Zero()
	cur.AccessMode = 1
	cur.AccessModeForModification = Some(1)

	d := Delta{ID: database.AccessModeID(3), Item: database.NewAccessMode("work"), Updates: []Update{
		{ID: database.AccessModeID(1), Item: database.NewAccessMode("x")},
		{ID: database.AccessModeID(2), Item: database.NewAccessMode("y")},
	}}
	cur = ApplyAdd(l, database.AccessModeID(1), d, cur)
	assert.Equal(t, 3, cur.AccessMode)
	assert.Equal(t, Some(3), cur.AccessModeForModification)

	l.AppendRaw(database.NewChatConfig("c", 0))
	cur.Config = Some(0)
	cur.ConfigForModification = Some(0)
	d = Delta{ID: database.ChatConfigID(1), Item: database.NewChatConfig("c", 0), Updates: []Update{
		{ID: database.ChatConfigID(0), Item: database.NewChatConfig("other", 0)},
	}}
	cur = ApplyAdd(l, database.ChatConfigID(0), d, cur)
	assert.Equal(t, Some(1), cur.Config)
	assert.Equal(t, Some(1), cur.ConfigForModification)
	assert.NoError(t, cur.Validate(l))
}

func TestApplyAdd_WrongKindPanics(t *testing.T) {
	l := database.NewLedger("alice")
	assert.Panics(t, func() {
		ApplyAdd(l, database.ChatID(0), Delta{ID: database.TagID(0), Item: &database.Tag{}}, Zero())
	})
}

// =============================================================================
// APPLY TESTS
// =============================================================================

func TestApplyUpdates_AppendAndOverwrite(t *testing.T) {
	l := database.NewLedger("alice")
	cur := ApplyUpdates(l, []Update{
		{ID: database.DeviceID(0), Item: &database.Device{Name: "laptop"}},
		{ID: database.DeviceID(0), Item: &database.Device{Name: "desktop"}},
		{ID: database.FolderID(3), Item: &database.Folder{Name: "far"}},
		{ID: database.UserDataID(), Item: &database.UserData{Pseudonym: "alice", DisplayName: "Al"}},
	}, Zero())

	assert.Equal(t, 1, l.Len(database.CategoryDevice))
	assert.Equal(t, "desktop", l.Devices[0].Name)
	assert.Equal(t, 1, l.Len(database.CategoryFolder))
	assert.Equal(t, 0, l.Folders[0].Pos)
	assert.Equal(t, "Al", l.User.DisplayName)
	assert.True(t, cur.Equal(Zero()))
	assert.NoError(t, l.Check())
}

func TestApplyUpdates_DoesNotAliasInput(t *testing.T) {
	l := database.NewLedger("alice")
	tag := database.NewTag("t", "", nil)
	ApplyUpdates(l, []Update{{ID: database.TagID(0), Item: tag}}, Zero())

	tag.Name = "changed"
	assert.Equal(t, "t", l.Tag(0).Name)
}

func TestApplyUpdates_WrongKindPanics(t *testing.T) {
	l := database.NewLedger("alice")
	assert.Panics(t, func() {
		ApplyUpdates(l, []Update{{ID: database.ChatID(0), Item: &database.Tag{}}}, Zero())
	})
}

func TestApplyUpdates_RejectedOverwriteShiftsCursors(t *testing.T) {
	l := database.NewLedger("alice")
	cur := Zero()
	cur.Tag = Some(1)
	cur.ParentTag = Some(0)
	cur.Tags = database.NewPositions(0, 2)

	cur = ApplyUpdates(l, []Update{{ID: database.TagID(-1), Item: &database.Tag{}}}, cur)

	assert.Equal(t, Some(2), cur.Tag)
	assert.Equal(t, Some(1), cur.ParentTag)
	assert.Equal(t, []int{1, 3}, cur.Tags.Sorted())
	assert.Equal(t, 0, l.Len(database.CategoryTag))
}

// =============================================================================
// CURSOR TESTS
// =============================================================================

func TestCursors_BumpFrom(t *testing.T) {
	cur := Zero()
	cur.Chat = Some(2)
	cur.Config = Some(1)
	cur.ConfigForModification = Some(0)
	cur.AccessMode = 1
	cur.AccessModeForModification = Some(0)

	cur.bumpFrom(database.CategoryChat, 2)
	cur.bumpFrom(database.CategoryChatConfig, 1)
	cur.bumpFrom(database.CategoryAccessMode, 1)
	cur.bumpFrom(database.CategoryNotification, 0)

	assert.Equal(t, Some(3), cur.Chat)
	assert.Equal(t, Some(2), cur.Config)
	assert.Equal(t, Some(0), cur.ConfigForModification)
	assert.Equal(t, 2, cur.AccessMode)
	assert.Equal(t, Some(0), cur.AccessModeForModification)
}

func TestCursors_Validate(t *testing.T) {
	l := database.NewLedger("alice")
	assert.NoError(t, Zero().Validate(l))

	cur := Zero()
	cur.Chat = Some(0)
	assert.ErrorIs(t, cur.Validate(l), ErrDanglingCursor)

	cur = Zero()
	cur.AccessMode = 4
	assert.ErrorIs(t, cur.Validate(l), ErrDanglingCursor)

	l.AppendRaw(database.NewChatConfig("c", 0))
	cur = Zero()
	cur.ConfigForModification = Some(0)
	cur.Setting = Some(0)
	assert.ErrorIs(t, cur.Validate(l), ErrDanglingCursor)

	l.Config(0).Upsert(-1, database.Temperature(50))
	assert.NoError(t, cur.Validate(l))
}

func TestCursors_CloneIsDeep(t *testing.T) {
	cur := Zero()
	s := database.Temperature(10)
	cur.SettingForModification = &s
	cur.Tags.Add(1)

	c := cur.Clone()
	c.Tags.Add(2)
	c.SettingForModification.Value = 90

	assert.Equal(t, []int{1}, cur.Tags.Sorted())
	assert.Equal(t, 10, cur.SettingForModification.Value)
}
