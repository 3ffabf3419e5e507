// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dbsync

import (
	"fmt"

	"github.com/jeranaias/proxima-tui/internal/database"
)

// ApplyAdd applies the outcome of DeltaForAdd for the optimistic entity at
// localID and returns the new cursors.
//
// The backfill is spliced in first, then the final entity is written at the
// server's id. Cursors are remapped from the selection as it was before any
// mutation: a cursor holding localID follows the entity to its new position,
// and parent/tag-set members that pointed into the optimistic tail
// [localID, end) move by the same offset.
func ApplyAdd(l *database.Ledger, localID database.ItemID, d Delta, c Cursors) Cursors {
	cat := localID.Category
	if d.ID.Category != cat || d.Item == nil || d.Item.Category() != cat {
		panic(fmt.Sprintf("Wrong kind of id: %s reconciled as %s", localID, d.ID))
	}

	tail := l.Len(cat)
	next := ApplyUpdates(l, d.Updates, c)
	next = ApplyUpdates(l, []Update{{ID: d.ID, Item: d.Item}}, next)

	shift := d.ID.Pos - localID.Pos
	if shift == 0 || !cat.Positional() {
		return next
	}
	local := localID.Pos
	remote := d.ID.Pos
	if tail < local+1 {
		tail = local + 1
	}
	inTail := func(p int) bool { return p >= local && p < tail }

	follow := func(dst *Cursor, before Cursor) {
		if before.Is(local) {
			*dst = Some(remote)
		}
	}
	moveSet := func(dst *database.Positions, before database.Positions) {
		var moved []int
		for _, p := range before.Sorted() {
			if inTail(p) {
				dst.Remove(p)
				moved = append(moved, p)
			}
		}
		for _, p := range moved {
			dst.Add(p + shift)
		}
	}

	switch cat {
	case database.CategoryChat:
		follow(&next.Chat, c.Chat)
	case database.CategoryTag:
		follow(&next.Tag, c.Tag)
		if p, ok := c.ParentTag.Get(); ok && inTail(p) {
			next.ParentTag = Some(p + shift)
		}
		moveSet(&next.AccessModeTags, c.AccessModeTags)
		moveSet(&next.Tags, c.Tags)
	case database.CategoryAccessMode:
		if c.AccessMode == local {
			next.AccessMode = remote
		}
		follow(&next.AccessModeForModification, c.AccessModeForModification)
	case database.CategoryChatConfig:
		follow(&next.Config, c.Config)
		follow(&next.ConfigForModification, c.ConfigForModification)
	}
	return next
}
