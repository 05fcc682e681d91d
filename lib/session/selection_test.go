// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "testing"

func TestSelectionToggleAndOrder(t *testing.T) {
	s := NewSelection()
	for _, i := range []uint32{5, 1, 3} {
		s.Add(i)
	}
	if got := s.Indices(); len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("Indices() = %v, want [1 3 5]", got)
	}

	s.Toggle(3)
	if s.Contains(3) {
		t.Fatal("Toggle did not deselect")
	}
	s.Toggle(3)
	if !s.Contains(3) {
		t.Fatal("Toggle did not reselect")
	}

	s.Clear()
	if s.Len() != 0 || len(s.Indices()) != 0 {
		t.Fatal("Clear left members behind")
	}
}
