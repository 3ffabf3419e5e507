// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dbsync

import (
	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/database"
)

// Update is an authoritative (id, entity) pair from the remote store.
type Update struct {
	ID   database.ItemID
	Item database.Item
}

// ApplyUpdates splices server entities into the ledger in order and returns
// the adjusted cursors. Each entity is copied and stamped with its pair's id
// before it is written.
//
// A position at or past the end appends. Anything else overwrites; if the
// ledger refuses the overwrite, every cursor of the category at or after the
// position moves up by one.
func ApplyUpdates(l *database.Ledger, updates []Update, c Cursors) Cursors {
	out := c.Clone()
	for _, u := range updates {
		item := u.Item.Clone()
		item.SetID(u.ID)

		cat := u.ID.Category
		if !cat.Positional() {
			l.AppendRaw(item)
			continue
		}
		if u.ID.Pos >= l.Len(cat) {
			l.AppendRaw(item)
			continue
		}
		if !l.InsertOrUpdate(item) {
			glog.Warningf("[sync] overwrite of %s rejected, shifting cursors", u.ID)
			out.bumpFrom(cat, u.ID.Pos)
		}
	}
	return out
}
