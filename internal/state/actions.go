// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/stream"
)

// Action is a state transition request. Actions are applied one at a time
// by Reduce.
type Action interface {
	action()
}

// =============================================================================
// SELECTION ACTIONS
// =============================================================================

// SetTab switches the visible tab.
type SetTab struct{ Tab int }

// SetChat selects a chat.
type SetChat struct{ Chat dbsync.Cursor }

// SetAccessMode switches the active access mode. Changing it clears the
// chat and tag selections, which belong to the previous mode.
type SetAccessMode struct{ AccessMode int }

// ChangeUsedChatConfig selects the configuration new prompts use.
type ChangeUsedChatConfig struct{ Config dbsync.Cursor }

// SetModifiedConfig selects the configuration being edited.
type SetModifiedConfig struct{ Config dbsync.Cursor }

// SetConfigSettingID selects a setting of the configuration being edited.
type SetConfigSettingID struct{ Setting dbsync.Cursor }

// SetCurrentSetting holds a draft setting.
type SetCurrentSetting struct{ Setting *database.ChatSetting }

// SetModifiedAM selects the access mode being edited.
type SetModifiedAM struct{ AccessMode dbsync.Cursor }

// SetModifiedTag selects the tag being edited.
type SetModifiedTag struct{ Tag dbsync.Cursor }

// SetParentTag selects the parent for the tag being edited.
type SetParentTag struct{ Tag dbsync.Cursor }

// SetTagsForAM replaces the tag set of the access mode being edited.
type SetTagsForAM struct{ Tags database.Positions }

// AddToTagsForAM adds a tag to the access mode being edited.
type AddToTagsForAM struct{ Tag int }

// RemoveFromTagsForAM removes a tag from the access mode being edited.
type RemoveFromTagsForAM struct{ Tag int }

// SetTags replaces the tag filter.
type SetTags struct{ Tags database.Positions }

// =============================================================================
// LEDGER ACTIONS
// =============================================================================

// CreateItem appends an entity optimistically at the next free position and
// selects it. The assigned id is reported in State.Created.
type CreateItem struct {
	Item   database.Item
	Select bool
}

// AddItem reconciles an optimistic create with the server's answer.
type AddItem struct {
	Local database.ItemID
	Delta dbsync.Delta
}

// ApplyUpdates writes authoritative entities.
type ApplyUpdates struct{ Updates []dbsync.Update }

// UpdateItem edits an existing entity in place, e.g. after a local edit
// that is being persisted with an Update request.
type UpdateItem struct{ Item database.Item }

// RemoveItem tombstones an entity.
type RemoveItem struct{ ID database.ItemID }

// ReplaceAll installs a full snapshot from the remote store.
type ReplaceAll struct{ Ledger *database.Ledger }

// StreamEvent folds a pushed token into its chat.
type StreamEvent struct{ Event stream.Event }

func (SetTab) action() {}
func (SetChat) action() {}
func (SetAccessMode) action() {}
func (ChangeUsedChatConfig) action() {}
func (SetModifiedConfig) action() {}
func (SetConfigSettingID) action() {}
func (SetCurrentSetting) action() {}
func (SetModifiedAM) action() {}
func (SetModifiedTag) action() {}
func (SetParentTag) action() {}
func (SetTagsForAM) action() {}
func (AddToTagsForAM) action() {}
func (RemoveFromTagsForAM) action() {}
func (SetTags) action() {}
func (CreateItem) action() {}
func (AddItem) action() {}
func (ApplyUpdates) action() {}
func (UpdateItem) action() {}
func (RemoveItem) action() {}
func (ReplaceAll) action() {}
func (StreamEvent) action() {}
