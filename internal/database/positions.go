// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"encoding/json"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Positions is a set of ledger positions. The zero value is an empty set.
// It serialises as a sorted JSON array.
type Positions struct {
	set mapset.Set[int]
}

// NewPositions returns a set holding ps.
func NewPositions(ps ...int) Positions {
	return Positions{set: mapset.NewThreadUnsafeSet(ps...)}
}

func (p *Positions) ensure() {
	if p.set == nil {
		p.set = mapset.NewThreadUnsafeSet[int]()
	}
}

// Add inserts pos and reports whether it was absent.
func (p *Positions) Add(pos int) bool {
	p.ensure()
	return p.set.Add(pos)
}

// Remove deletes pos.
func (p *Positions) Remove(pos int) {
	if p.set != nil {
		p.set.Remove(pos)
	}
}

// Contains reports whether pos is a member.
func (p Positions) Contains(pos int) bool {
	return p.set != nil && p.set.Contains(pos)
}

// Len returns the number of members.
func (p Positions) Len() int {
	if p.set == nil {
		return 0
	}
	return p.set.Cardinality()
}

// Sorted returns the members in ascending order.
func (p Positions) Sorted() []int {
	if p.set == nil {
		return []int{}
	}
	out := p.set.ToSlice()
	sort.Ints(out)
	return out
}

// Map returns a new set with fn applied to every member.
func (p Positions) Map(fn func(int) int) Positions {
	out := NewPositions()
	for _, pos := range p.Sorted() {
		out.Add(fn(pos))
	}
	return out
}

// Clone returns an independent copy.
func (p Positions) Clone() Positions {
	if p.set == nil {
		return Positions{}
	}
	return Positions{set: p.set.Clone()}
}

// Equal reports whether both sets hold the same members.
func (p Positions) Equal(other Positions) bool {
	if p.Len() != other.Len() {
		return false
	}
	if p.Len() == 0 {
		return true
	}
	return p.set.Equal(other.set)
}

// MarshalJSON implements json.Marshaler.
func (p Positions) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Positions) UnmarshalJSON(b []byte) error {
	var ps []int
	if err := json.Unmarshal(b, &ps); err != nil {
		return err
	}
	*p = NewPositions(ps...)
	return nil
}
