// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/proxima-tui/internal/database"
	"github.com/jeranaias/proxima-tui/internal/dbsync"
	"github.com/jeranaias/proxima-tui/internal/model"
)

// =============================================================================
// INTERLEAVED CREATES
// =============================================================================

// sharedLedger is the authoritative store other clients also write to.
type sharedLedger struct {
	ledger *database.Ledger
}

func (s *sharedLedger) do(_ context.Context, req database.Request) (database.Reply, error) {
	switch req.Kind {
	case database.RequestAdd:
		return database.AddedItem(s.ledger.AppendRaw(req.Item.Clone())), nil
	case database.RequestGet:
		item, ok := s.ledger.Get(req.ID)
		if !ok {
			return database.ErrorReply("not found"), nil
		}
		return database.ReturnedItem(item.Clone()), nil
	}
	return database.Ack(), nil
}

func randomItem(r *rand.Rand, name string) database.Item {
	if r.Intn(2) == 0 {
		return database.NewTag(name, "", nil)
	}
	chat := database.NewChat(0, model.NewContext(model.NewUserPart(name)))
	chat.Title = name
	return chat
}

func randomPos(r *rand.Rand, l *database.Ledger, c database.Category) int {
	// One past the end on purpose: setters must refuse it.
	return r.Intn(l.Len(c) + 1)
}

func labels(l *database.Ledger, c database.Category) []string {
	var out []string
	for pos := 0; pos < l.Len(c); pos++ {
		item, _ := l.Get(database.ItemID{Category: c, Pos: pos})
		out = append(out, item.(interface{ Label() string }).Label())
	}
	return out
}

func TestReduce_InterleavedCreatesKeepLedgerDenseAndCursorsValid(t *testing.T) {
	ctx := context.Background()
	categories := []database.Category{database.CategoryChat, database.CategoryTag}

	for seed := int64(1); seed <= 300; seed++ {
		r := rand.New(rand.NewSource(seed))
		server := &sharedLedger{ledger: database.NewLedger("alice")}
		s := New("alice")
		var inflight []AddItem

		check := func(step int, what string) {
			require.NoError(t, s.DB.Check(), "seed %d step %d after %s", seed, step, what)
			require.NoError(t, s.Cursors.Validate(s.DB), "seed %d step %d after %s", seed, step, what)
		}

		for step := 0; step < 60; step++ {
			name := fmt.Sprintf("s%d-%d", seed, step)
			var what string
			switch r.Intn(6) {
			case 0:
				what = "remote create"
				server.ledger.AppendRaw(randomItem(r, "remote-"+name))
			case 1, 2:
				what = "begin create"
				item := randomItem(r, name)
				s = Reduce(s, CreateItem{Item: item, Select: r.Intn(2) == 0}, t0)
				delta, err := dbsync.DeltaForAdd(ctx, s.Created, item, server.do)
				require.NoError(t, err)
				inflight = append(inflight, AddItem{Local: s.Created, Delta: delta})
			case 3:
				what = "finish create"
				if len(inflight) == 0 {
					continue
				}
				s = Reduce(s, inflight[0], t0)
				inflight = inflight[1:]
			case 4:
				what = "select"
				var a Action
				switch r.Intn(5) {
				case 0:
					a = SetChat{Chat: dbsync.Some(randomPos(r, s.DB, database.CategoryChat))}
				case 1:
					a = SetModifiedTag{Tag: dbsync.Some(randomPos(r, s.DB, database.CategoryTag))}
				case 2:
					a = SetParentTag{Tag: dbsync.Some(randomPos(r, s.DB, database.CategoryTag))}
				case 3:
					a = AddToTagsForAM{Tag: randomPos(r, s.DB, database.CategoryTag)}
				default:
					a = SetTags{Tags: database.NewPositions(
						randomPos(r, s.DB, database.CategoryTag),
						randomPos(r, s.DB, database.CategoryTag),
					)}
				}
				s = Reduce(s, a, t0)
			case 5:
				what = "remove"
				c := categories[r.Intn(len(categories))]
				if s.DB.Len(c) == 0 {
					continue
				}
				id := database.ItemID{Category: c, Pos: r.Intn(s.DB.Len(c))}
				if s.Pending.Contains(id) {
					continue
				}
				s = Reduce(s, RemoveItem{ID: id}, t0)
				server.ledger.Remove(id)
			}
			check(step, what)
		}

		for _, add := range inflight {
			s = Reduce(s, add, t0)
			check(-1, "drain")
		}

		// One more create per category pulls in everything the server has.
		for _, c := range categories {
			item, err := database.NewItem(c)
			require.NoError(t, err)
			switch it := item.(type) {
			case *database.Tag:
				it.Name = "last"
			case *database.Chat:
				it.Title = "last"
			}
			s = Reduce(s, CreateItem{Item: item}, t0)
			delta, err := dbsync.DeltaForAdd(ctx, s.Created, item, server.do)
			require.NoError(t, err)
			s = Reduce(s, AddItem{Local: s.Created, Delta: delta}, t0)
			check(-1, "final create")

			require.Equal(t, labels(server.ledger, c), labels(s.DB, c), "seed %d: %s diverged", seed, c)
		}
		require.Equal(t, 0, s.Pending.Cardinality(), "seed %d", seed)
	}
}
