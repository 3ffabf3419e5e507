// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/model"
	"github.com/jeranaias/proxima-tui/internal/remote"
	"github.com/jeranaias/proxima-tui/internal/state"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

var (
	// ErrEmptyPrompt is returned when there is nothing to send.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrNothingSelected is returned when an edit needs a selection that is
	// not there.
	ErrNothingSelected = errors.New("nothing selected")
)

// Remote is the backend as seen by a session. *remote.Client satisfies it.
type Remote interface {
	Do(ctx context.Context, req database.Request) (database.Reply, error)
	Respond(ctx context.Context, req remote.AIRequest) (remote.AIReply, error)
}

// =============================================================================
// SESSION
// =============================================================================

// Session runs the client's flows: every change is applied to the store
// first and sent to the backend second. Transport failures leave the
// optimistic state in place and are returned to the caller; nothing retries.
type Session struct {
	store  *state.Store
	remote Remote
	device int
}

// New creates a session for the device the backend assigned at login.
func New(store *state.Store, r Remote, device int) *Session {
	return &Session{store: store, remote: r, device: device}
}

// Store returns the underlying store.
func (s *Session) Store() *state.Store {
	return s.store
}

// Load replaces the local ledger with the backend's.
func (s *Session) Load(ctx context.Context) error {
	reply, err := s.remote.Do(ctx, database.GetAllRequest())
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	if reply.Kind != database.ReplyAll || reply.All == nil {
		return fmt.Errorf("%w: %s to get_all", dbsync.ErrUnexpectedReply, reply.Kind)
	}
	if err := reply.All.Check(); err != nil {
		return err
	}
	_, err = s.store.Apply(state.ReplaceAll{Ledger: reply.All})
	return err
}

// HandleEvent folds a pushed stream event into the store.
func (s *Session) HandleEvent(ev stream.Event) {
	s.store.Dispatch(state.StreamEvent{Event: ev})
}

// =============================================================================
// CHATS
// =============================================================================

// SendPrompt appends a user turn to the selected chat, or to a new chat when
// none is selected, and asks the backend to reply. With stream set the reply
// arrives through HandleEvent; otherwise its turns are appended and the chat
// is persisted. The chat's final id is returned.
func (s *Session) SendPrompt(ctx context.Context, text string, streamed bool) (database.ItemID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return database.ItemID{}, ErrEmptyPrompt
	}

	snap, err := s.store.Current()
	if err != nil {
		return database.ItemID{}, err
	}
	cur := snap.Cursors

	var id database.ItemID
	if pos, ok := cur.Chat.Get(); ok {
		chat := snap.DB.Chat(pos).Clone().(*database.Chat)
		chat.Context.AddUser(text)
		if err := s.save(ctx, chat); err != nil {
			return chat.ID(), err
		}
		id = chat.ID()
	} else {
		chat := database.NewChat(cur.AccessMode, model.NewContext(model.NewUserPart(text)))
		chat.Device = s.device
		if pos, ok := cur.Config.Get(); ok {
			chat.Config = database.IntPtr(pos)
		}
		if id, err = s.create(ctx, chat, true); err != nil {
			return id, err
		}
	}

	chat := s.store.Snapshot().DB.Chat(id.Pos)
	if chat == nil {
		return id, fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	req := remote.AIRequest{
		Chat:       id.Pos,
		Context:    chat.Context.Clone(),
		AccessMode: cur.AccessMode,
		Stream:     streamed,
	}
	if pos, ok := cur.Config.Get(); ok {
		if cfg := s.store.Snapshot().DB.Config(pos); cfg != nil {
			req.Config = cfg.Clone().(*database.ChatConfig)
		}
	}

	reply, err := s.remote.Respond(ctx, req)
	if err != nil {
		return id, fmt.Errorf("failed to get reply: %w", err)
	}
	if reply.Kind == remote.AIStreaming {
		glog.V(2).Infof("[session] %s reply is streaming", id)
		return id, nil
	}

	latest := s.store.Snapshot().DB.Chat(id.Pos)
	if latest == nil {
		return id, fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	updated := latest.Clone().(*database.Chat)
	for _, turn := range reply.Turns() {
		updated.Context.Add(turn)
	}
	updated.LatestUsedConfig = req.Config
	return id, s.save(ctx, updated)
}

// SaveChat persists the chat at pos as the store currently holds it, e.g.
// once a streamed reply has finished.
func (s *Session) SaveChat(ctx context.Context, pos int) error {
	snap, err := s.store.Current()
	if err != nil {
		return err
	}
	chat := snap.DB.Chat(pos)
	if chat == nil {
		return fmt.Errorf("%w: %s", database.ErrNotFound, database.ChatID(pos))
	}
	return s.persist(ctx, chat)
}

// =============================================================================
// TAGS AND ACCESS MODES
// =============================================================================

// SaveTag writes the tag under edit, or creates one when none is selected.
// The parent comes from the parent tag selection.
func (s *Session) SaveTag(ctx context.Context, name, description string) (database.ItemID, error) {
	snap, err := s.store.Current()
	if err != nil {
		return database.ItemID{}, err
	}
	cur := snap.Cursors
	var parent *int
	if pos, ok := cur.ParentTag.Get(); ok {
		parent = database.IntPtr(pos)
	}
	tag := database.NewTag(name, description, parent)

	if pos, ok := cur.Tag.Get(); ok {
		tag.SetID(database.TagID(pos))
		return tag.ID(), s.save(ctx, tag)
	}
	return s.create(ctx, tag, true)
}

// SaveAccessMode writes the access mode under edit with the tags chosen for
// it, or creates one when none is selected.
func (s *Session) SaveAccessMode(ctx context.Context, name string) (database.ItemID, error) {
	snap, err := s.store.Current()
	if err != nil {
		return database.ItemID{}, err
	}
	cur := snap.Cursors
	am := database.NewAccessMode(name, cur.AccessModeTags.Sorted()...)

	if pos, ok := cur.AccessModeForModification.Get(); ok {
		am.SetID(database.AccessModeID(pos))
		return am.ID(), s.save(ctx, am)
	}
	return s.create(ctx, am, true)
}

// =============================================================================
// CONFIGURATIONS
// =============================================================================

// CreateConfig creates an empty configuration in the current access mode
// and selects it for editing.
func (s *Session) CreateConfig(ctx context.Context, name string) (database.ItemID, error) {
	snap, err := s.store.Current()
	if err != nil {
		return database.ItemID{}, err
	}
	return s.create(ctx, database.NewChatConfig(name, snap.Cursors.AccessMode), true)
}

// SaveSetting writes the setting being edited into the configuration under
// edit, replacing the selected setting or appending a new one.
func (s *Session) SaveSetting(ctx context.Context) error {
	snap, err := s.store.Current()
	if err != nil {
		return err
	}
	cur := snap.Cursors
	pos, ok := cur.ConfigForModification.Get()
	if !ok || cur.SettingForModification == nil {
		return ErrNothingSelected
	}
	cfg := snap.DB.Config(pos).Clone().(*database.ChatConfig)

	index := -1
	if i, ok := cur.Setting.Get(); ok {
		index = i
	}
	written := cfg.Upsert(index, cur.SettingForModification.Clone())
	if err := s.save(ctx, cfg); err != nil {
		return err
	}
	_, err = s.store.Apply(state.SetConfigSettingID{Setting: dbsync.Some(written)})
	return err
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// DeleteNotification removes a notification locally and on the backend.
func (s *Session) DeleteNotification(ctx context.Context, pos int) error {
	id := database.NotificationID(pos)
	snap, err := s.store.Apply(state.RemoveItem{ID: id})
	if err != nil {
		return err
	}
	if snap.Err != nil {
		return snap.Err
	}
	if _, err := s.remote.Do(ctx, database.RemoveRequest(id)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", id, err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// create appends item optimistically, sends it to the backend and
// reconciles the answer. The returned id is the one the backend assigned,
// or the optimistic one when the Add failed.
func (s *Session) create(ctx context.Context, item database.Item, sel bool) (database.ItemID, error) {
	snap, err := s.store.Apply(state.CreateItem{Item: item, Select: sel})
	if err != nil {
		return database.ItemID{}, err
	}
	local := snap.Created

	delta, addErr := dbsync.DeltaForAdd(ctx, local, item, s.remote.Do)
	if _, err := s.store.Apply(state.AddItem{Local: local, Delta: delta}); err != nil {
		return delta.ID, err
	}
	if addErr != nil {
		return delta.ID, fmt.Errorf("failed to add %s: %w", local, addErr)
	}
	return delta.ID, nil
}

// save applies an edit locally, then persists it.
func (s *Session) save(ctx context.Context, item database.Item) error {
	snap, err := s.store.Apply(state.UpdateItem{Item: item})
	if err != nil {
		return err
	}
	if snap.Err != nil {
		return snap.Err
	}
	return s.persist(ctx, item)
}

func (s *Session) persist(ctx context.Context, item database.Item) error {
	if _, err := s.remote.Do(ctx, database.UpdateRequest(item)); err != nil {
		return fmt.Errorf("failed to save %s: %w", item.ID(), err)
	}
	return nil
}
