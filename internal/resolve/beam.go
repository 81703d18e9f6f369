// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"sort"
)

// Beam is the bounded frontier of the search: partial states kept
// sorted by score, best first. Insertion over capacity evicts the
// lowest-ranked state, so the width bound is hard. Equal scores rank
// in insertion order, which keeps runs deterministic under a fixed
// seed. Per prd001-resolution R3.1-R3.4.
type Beam struct {
	width int
	items []beamItem
	seq   uint64
}

type beamItem struct {
	state *State
	seq   uint64
}

// NewBeam builds a beam keeping at most width states. A width of zero
// or less means unbounded.
func NewBeam(width int) *Beam {
	return &Beam{width: width}
}

// Size returns the number of states currently held.
func (b *Beam) Size() int { return len(b.items) }

// Width returns the configured capacity, 0 for unbounded.
func (b *Beam) Width() int {
	if b.width < 0 {
		return 0
	}
	return b.width
}

// Top returns the highest-scored state. ErrEmptyBeam when empty.
func (b *Beam) Top() (*State, error) {
	if len(b.items) == 0 {
		return nil, ErrEmptyBeam
	}
	return b.items[0].state, nil
}

// Get returns the state at rank i (0 = best).
func (b *Beam) Get(i int) (*State, error) {
	if len(b.items) == 0 {
		return nil, ErrEmptyBeam
	}
	if i < 0 || i >= len(b.items) {
		return nil, fmt.Errorf("beam rank %d out of range [0, %d)", i, len(b.items))
	}
	return b.items[i].state, nil
}

// Add inserts a state at its score rank. When the beam is at capacity
// the lowest-ranked state is evicted afterwards; the incoming state may
// itself be the one evicted. The beam never mutates held states.
func (b *Beam) Add(state *State) {
	item := beamItem{state: state, seq: b.seq}
	b.seq++

	// First index ranked strictly below the new state. Equal scores
	// stay ahead, so ties break by insertion order.
	pos := sort.Search(len(b.items), func(i int) bool {
		return b.items[i].state.Score() < state.Score()
	})

	b.items = append(b.items, beamItem{})
	copy(b.items[pos+1:], b.items[pos:])
	b.items[pos] = item

	if b.width > 0 && len(b.items) > b.width {
		b.items[len(b.items)-1] = beamItem{}
		b.items = b.items[:len(b.items)-1]
	}
}

// Remove takes a state out of the beam by identity. Returns false when
// the state is not present.
func (b *Beam) Remove(state *State) bool {
	for i := range b.items {
		if b.items[i].state == state {
			copy(b.items[i:], b.items[i+1:])
			b.items[len(b.items)-1] = beamItem{}
			b.items = b.items[:len(b.items)-1]
			return true
		}
	}
	return false
}

// States returns a snapshot of the held states in rank order.
func (b *Beam) States() []*State {
	out := make([]*State, len(b.items))
	for i, it := range b.items {
		out[i] = it.state
	}
	return out
}
