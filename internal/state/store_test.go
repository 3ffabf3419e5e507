// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

func newTestStore(t *testing.T) (*Store, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewStore(ctx, New("alice"), Options{Clock: func() time.Time { return t0 }}), cancel
}

func TestStore_ApplyReturnsSnapshot(t *testing.T) {
	store, _ := newTestStore(t)

	snap, err := store.Apply(CreateItem{Item: database.NewTag("t", "", nil), Select: true})
	require.NoError(t, err)
	assert.Equal(t, database.TagID(0), snap.Created)
	assert.Equal(t, uint64(1), snap.Version)

	// Snapshots are copies.
	snap.DB.Tag(0).Name = "mutated"
	assert.Equal(t, "t", store.Snapshot().DB.Tag(0).Name)

	latest := store.Snapshot()
	latest.DB.Tag(0).Name = "mutated"
	latest.Cursors.Tag = dbsync.None
	again := store.Snapshot()
	assert.Equal(t, "t", again.DB.Tag(0).Name)
	assert.True(t, again.Cursors.Tag.Is(0))
}

func TestStore_SubscribersGetOwnCopies(t *testing.T) {
	store, _ := newTestStore(t)
	ch, cancel := store.Subscribe()
	defer cancel()

	_, err := store.Apply(CreateItem{Item: database.NewTag("t", "", nil)})
	require.NoError(t, err)

	select {
	case snap := <-ch:
		snap.DB.Tag(0).Name = "mutated"
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
	assert.Equal(t, "t", store.Snapshot().DB.Tag(0).Name)
}

func TestStore_CurrentSeesDispatchedActions(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Apply(CreateItem{Item: database.NewChat(0, model.Context{}), Select: true})
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		store.Dispatch(SetChat{Chat: dbsync.None})
		snap, err := store.Current()
		require.NoError(t, err)
		require.False(t, snap.Cursors.Chat.Valid, "iteration %d", i)

		store.Dispatch(SetChat{Chat: dbsync.Some(0)})
		snap, err = store.Current()
		require.NoError(t, err)
		require.True(t, snap.Cursors.Chat.Is(0), "iteration %d", i)
	}
}

func TestStore_NilDispatchIsIgnored(t *testing.T) {
	store, _ := newTestStore(t)
	store.Dispatch(nil)
	snap, err := store.Apply(SetTab{Tab: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)
}

func TestStore_DispatchIsOrdered(t *testing.T) {
	store, _ := newTestStore(t)

	for i := 0; i < 10; i++ {
		store.Dispatch(CreateItem{Item: &database.Notification{Message: "n"}})
	}
	snap, err := store.Apply(SetTab{Tab: 1})
	require.NoError(t, err)

	assert.Equal(t, 10, snap.DB.Len(database.CategoryNotification))
	assert.Equal(t, uint64(11), snap.Version)
	assert.NoError(t, snap.DB.Check())
}

func TestStore_SubscribeSeesLatest(t *testing.T) {
	store, _ := newTestStore(t)
	ch, cancel := store.Subscribe()
	defer cancel()

	_, err := store.Apply(SetTab{Tab: 1})
	require.NoError(t, err)
	_, err = store.Apply(SetTab{Tab: 2})
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, 2, snap.Cursors.Tab)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestStore_PanickingTransitionIsDropped(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Apply(CreateItem{Item: database.NewChat(0, model.Context{})})
	require.NoError(t, err)

	_, err = store.Apply(StreamEvent{Event: stream.Event{Kind: stream.KindEnd, Chat: 0}})
	assert.ErrorIs(t, err, ErrTransitionPanicked)

	snap := store.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 1, snap.DB.Len(database.CategoryChat))
}

func TestStore_ReportsTransitionError(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Apply(RemoveItem{ID: database.ChatID(0)})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStore_ClosedStore(t *testing.T) {
	store, cancel := newTestStore(t)
	cancel()

	require.Eventually(t, func() bool {
		_, err := store.Apply(SetTab{Tab: 1})
		return err == ErrStoreClosed
	}, time.Second, 10*time.Millisecond)
	store.Dispatch(SetTab{Tab: 3})
}

func TestSnapshot_Dump(t *testing.T) {
	store, _ := newTestStore(t)
	snap, err := store.Apply(CreateItem{Item: database.NewTag("dumped", "", nil)})
	require.NoError(t, err)

	out := snap.Dump()
	assert.True(t, strings.Contains(out, "dumped"), out)
	assert.True(t, strings.Contains(out, "Version"), out)
}
