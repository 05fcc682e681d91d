// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact holds the slices a session produces. The store owns
// every artifact it is given: display handles are created on Put and
// released only through ReleaseAll, so no handle can leak past the
// session that created it.
package artifact

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Ref is a short content reference derived from a payload's BLAKE3
// hash (slc-<16 hex chars>). Refs name display-handle resources and
// make payloads identifiable in logs without dumping bytes.
type Ref string

// ComputeRef derives the content reference for a payload.
func ComputeRef(payload []byte) Ref {
	sum := blake3.Sum256(payload)
	return Ref("slc-" + hex.EncodeToString(sum[:8]))
}

// SliceArtifact is one produced slice: encoded payload, pixel
// dimensions, content reference, and the display handle that presents
// it. Owned exclusively by the Store after Put; callers must not
// release the handle themselves.
type SliceArtifact struct {
	// Index is the 0-based slice position. For a completed session
	// the store holds exactly indices 0..N-1.
	Index uint32

	// Payload is the encoded raster chunk. Nil when the payload has
	// been spilled to disk; use Store.Payload to read it back.
	Payload []byte

	// Width and Height are the slice's pixel dimensions.
	Width  uint32
	Height uint32

	// Ref is the payload's content reference.
	Ref Ref

	// Handle presents the payload to display layers. Released by
	// Store.ReleaseAll, never by callers.
	Handle DisplayHandle

	// spill is non-nil when the payload lives on disk.
	spill *spillRecord
}
