// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package slicer

import "fmt"

// EnvelopeVersion is the current task message contract version. The
// envelope field layout is the one wire-like contract in sliceforge:
// consumers tolerate unknown fields, so additive changes bump nothing,
// while field removals or renames require a new version.
const EnvelopeVersion = 1

// Kind discriminates the envelope's tagged union. The numeric values
// are protocol constants — changing them breaks envelope compatibility.
type Kind uint8

const (
	// KindProgress carries a percent update.
	KindProgress Kind = 1

	// KindChunk carries one produced slice.
	KindChunk Kind = 2

	// KindDone is the terminal success signal. Nothing follows it.
	KindDone Kind = 3

	// KindError is the terminal failure signal. Nothing follows it.
	// Chunks already delivered remain valid.
	KindError Kind = 4
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindChunk:
		return "chunk"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Terminal reports whether no further messages follow this kind.
func (k Kind) Terminal() bool { return k == KindDone || k == KindError }

// Chunk is one produced slice: the encoded payload plus its pixel
// dimensions. Index is 0-based; for a given task invocation chunks are
// delivered strictly index-ascending and, on success, form 0..N-1 with
// no gaps.
type Chunk struct {
	Index   uint32 `cbor:"index"`
	Payload []byte `cbor:"payload"`
	Width   uint32 `cbor:"width"`
	Height  uint32 `cbor:"height"`
}

// Envelope is the tagged-union message a slicing task emits. Exactly
// one of the payload fields is meaningful, selected by Kind. Token
// identifies the originating session so consumers can discard messages
// from a superseded task.
type Envelope struct {
	Version uint8  `cbor:"v"`
	Token   uint64 `cbor:"token"`
	Kind    Kind   `cbor:"kind"`

	// Percent is set for KindProgress: 0..100, monotonically
	// non-decreasing within one task invocation.
	Percent int `cbor:"percent,omitempty"`

	// Chunk is set for KindChunk.
	Chunk *Chunk `cbor:"chunk,omitempty"`

	// Message is set for KindError.
	Message string `cbor:"message,omitempty"`
}

func progressEnvelope(token uint64, percent int) Envelope {
	return Envelope{Version: EnvelopeVersion, Token: token, Kind: KindProgress, Percent: percent}
}

func chunkEnvelope(token uint64, chunk Chunk) Envelope {
	return Envelope{Version: EnvelopeVersion, Token: token, Kind: KindChunk, Chunk: &chunk}
}

func doneEnvelope(token uint64) Envelope {
	return Envelope{Version: EnvelopeVersion, Token: token, Kind: KindDone}
}

func errorEnvelope(token uint64, message string) Envelope {
	return Envelope{Version: EnvelopeVersion, Token: token, Kind: KindError, Message: message}
}
