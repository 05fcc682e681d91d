// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "slices"

// Selection tracks which slice indices are marked for export. It is
// not self-locking; the Controller serializes access under its own
// mutex and keeps the invariant that every selected index exists in
// the artifact store.
type Selection struct {
	members map[uint32]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{members: make(map[uint32]struct{})}
}

// Add marks index as selected.
func (s *Selection) Add(index uint32) {
	s.members[index] = struct{}{}
}

// Toggle flips index between selected and not.
func (s *Selection) Toggle(index uint32) {
	if _, ok := s.members[index]; ok {
		delete(s.members, index)
	} else {
		s.members[index] = struct{}{}
	}
}

// Contains reports whether index is selected.
func (s *Selection) Contains(index uint32) bool {
	_, ok := s.members[index]
	return ok
}

// Clear removes every member.
func (s *Selection) Clear() {
	clear(s.members)
}

// Len returns the number of selected indices.
func (s *Selection) Len() int { return len(s.members) }

// Indices returns the selected indices in ascending order.
func (s *Selection) Indices() []uint32 {
	out := make([]uint32, 0, len(s.members))
	for index := range s.members {
		out = append(out, index)
	}
	slices.Sort(out)
	return out
}
