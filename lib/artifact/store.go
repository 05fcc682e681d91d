// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrDuplicateIndex indicates a Put for an index the store already
// holds. Slice indices within a session are unique; a duplicate means
// the caller's message handling is broken.
var ErrDuplicateIndex = errors.New("artifact: duplicate slice index")

// Store holds the artifacts of the current session, keyed by slice
// index. The session controller is the single writer; reads may come
// from any goroutine.
//
// Artifacts are destroyed only through ReleaseAll, which revokes every
// display handle before dropping the mapping. There is deliberately no
// per-artifact delete: release and removal travel together so a handle
// can never outlive its artifact or vice versa.
type Store struct {
	factory HandleFactory
	logger  *slog.Logger

	// spillDir/spillThreshold configure optional payload spill; see
	// WithSpill.
	spillDir       string
	spillThreshold int

	mu        sync.Mutex
	artifacts map[uint32]*SliceArtifact
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithSpill stores payloads of at least threshold bytes on disk,
// lz4-compressed when that wins, instead of in memory. Spilled
// payloads are read back transparently by Payload and removed by
// ReleaseAll.
func WithSpill(dir string, threshold int) StoreOption {
	return func(s *Store) {
		s.spillDir = dir
		s.spillThreshold = threshold
	}
}

// NewStore returns an empty store creating display handles with the
// given factory.
func NewStore(factory HandleFactory, opts ...StoreOption) *Store {
	s := &Store{
		factory:   factory,
		logger:    slog.Default(),
		artifacts: make(map[uint32]*SliceArtifact),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put creates a display handle for the payload and stores the
// artifact. The returned artifact is owned by the store.
func (s *Store) Put(index uint32, payload []byte, width, height uint32) (*SliceArtifact, error) {
	ref := ComputeRef(payload)
	handle, err := s.factory.Create(payload, ref)
	if err != nil {
		return nil, fmt.Errorf("artifact: creating display handle for slice %d: %w", index, err)
	}

	art := &SliceArtifact{
		Index:   index,
		Payload: payload,
		Width:   width,
		Height:  height,
		Ref:     ref,
		Handle:  handle,
	}

	if s.spillDir != "" && len(payload) >= s.spillThreshold {
		record, err := s.spill(art)
		if err != nil {
			// Spill is an optimization; keep the payload in memory
			// rather than failing the session.
			s.logger.Warn("payload spill failed, keeping in memory",
				"index", index, "error", err)
		} else {
			art.Payload = nil
			art.spill = record
		}
	}

	s.mu.Lock()
	_, exists := s.artifacts[index]
	if !exists {
		s.artifacts[index] = art
	}
	s.mu.Unlock()

	if exists {
		// The store never tracked this artifact; undo its resources.
		if releaseErr := handle.Release(); releaseErr != nil {
			s.logger.Warn("releasing handle for rejected duplicate",
				"index", index, "error", releaseErr)
		}
		if art.spill != nil {
			if removeErr := removeSpill(art.spill); removeErr != nil {
				s.logger.Warn("removing spill for rejected duplicate",
					"index", index, "error", removeErr)
			}
		}
		return nil, fmt.Errorf("%w: %d", ErrDuplicateIndex, index)
	}
	return art, nil
}

// Get returns the artifact at index, if present. The artifact's
// Payload field may be nil for spilled payloads; use Payload to read
// the bytes.
func (s *Store) Get(index uint32) (*SliceArtifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	art, ok := s.artifacts[index]
	return art, ok
}

// Payload returns the payload bytes for the artifact at index,
// reading spilled payloads back from disk.
func (s *Store) Payload(index uint32) ([]byte, error) {
	s.mu.Lock()
	art, ok := s.artifacts[index]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("artifact: no slice at index %d", index)
	}
	if art.spill == nil {
		return art.Payload, nil
	}
	return readSpill(art.spill)
}

// All returns the stored artifacts in ascending index order.
func (s *Store) All() []*SliceArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*SliceArtifact, 0, len(s.artifacts))
	for _, art := range s.artifacts {
		out = append(out, art)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Contains reports whether the store holds an artifact at index.
func (s *Store) Contains(index uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.artifacts[index]
	return ok
}

// Indices returns the stored indices in ascending order.
func (s *Store) Indices() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, 0, len(s.artifacts))
	for index := range s.artifacts {
		out = append(out, index)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ReleaseAll revokes every display handle, removes spilled payloads,
// and clears the store. Idempotent; safe on an empty store. This is
// the only way artifacts are destroyed.
func (s *Store) ReleaseAll() error {
	s.mu.Lock()
	artifacts := s.artifacts
	s.artifacts = make(map[uint32]*SliceArtifact)
	s.mu.Unlock()

	var errs []error
	for _, art := range artifacts {
		if err := art.Handle.Release(); err != nil {
			errs = append(errs, fmt.Errorf("slice %d: %w", art.Index, err))
		}
		if art.spill != nil {
			if err := removeSpill(art.spill); err != nil {
				errs = append(errs, fmt.Errorf("slice %d spill: %w", art.Index, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("artifact: releasing %d of %d artifacts failed: %w",
			len(errs), len(artifacts), errors.Join(errs...))
	}
	return nil
}
