// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dbsync

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/jeranaias/proxima-tui/internal/database"
)

// RequestFunc performs one remote store request.
type RequestFunc func(ctx context.Context, req database.Request) (database.Reply, error)

// Delta is everything needed to reconcile one optimistic create: the
// server entities that filled the gap, the id the server assigned and the
// entity stamped with it.
type Delta struct {
	Updates []Update
	ID      database.ItemID
	Item    database.Item
}

// Conflict reports whether the server assigned a different position.
func (d Delta) Conflict(local database.ItemID) bool {
	return d.ID != local
}

// DeltaForAdd sends item to the remote store as localID and computes the
// delta that brings the ledger in line with the position the server chose.
//
// When the Add fails the returned Delta keeps localID and has no updates, so
// applying it leaves the optimistic entity in place; the error is returned
// alongside for the caller to surface. A failed Get while backfilling is not
// an error: a copy of item stamped with the missing position stands in.
func DeltaForAdd(ctx context.Context, localID database.ItemID, item database.Item, do RequestFunc) (Delta, error) {
	item = item.Clone()
	item.SetID(localID)
	fallback := Delta{ID: localID, Item: item}

	reply, err := do(ctx, database.AddRequest(item))
	if err != nil {
		glog.Warningf("[sync] add %s failed: %v", localID, err)
		return fallback, err
	}
	if err := reply.Err(); err != nil {
		glog.Warningf("[sync] add %s refused: %v", localID, err)
		return fallback, err
	}
	if reply.Kind != database.ReplyAddedItem || reply.ID.Category != localID.Category {
		glog.Warningf("[sync] add %s: unexpected %s reply", localID, reply.Kind)
		return fallback, fmt.Errorf("%w: %s to add %s", ErrUnexpectedReply, reply.Kind, localID)
	}

	remote := reply.ID
	if remote == localID {
		return fallback, nil
	}
	glog.Infof("[sync] %s conflict, server assigned %s", localID, remote)

	var updates []Update
	for _, id := range database.Range(localID, remote) {
		glog.V(2).Infof("[sync] backfill %s", id)
		got, err := do(ctx, database.GetRequest(id))
		if err != nil || got.Kind != database.ReplyReturnedItem || got.Item == nil || got.Item.Category() != id.Category {
			glog.Warningf("[sync] backfill %s unavailable, using placeholder", id)
			placeholder := item.Clone()
			placeholder.SetID(id)
			updates = append(updates, Update{ID: id, Item: placeholder})
			continue
		}
		updates = append(updates, Update{ID: id, Item: got.Item})
	}

	item.SetID(remote)
	return Delta{Updates: updates, ID: remote, Item: item}, nil
}
