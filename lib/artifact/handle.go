// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// DisplayHandle is an opaque, single-owner resource that references an
// artifact's payload for presentation. The core never interprets the
// URI; display layers hand it to whatever views the payload. Handles
// are created by a HandleFactory and released exactly once, by the
// store.
type DisplayHandle interface {
	// URI locates the presented payload (a file path for the file
	// factory).
	URI() string

	// Release revokes the handle and frees its resource.
	Release() error
}

// HandleFactory binds payloads to display handles. The core depends
// only on this interface; each environment supplies its own resource
// mechanism.
type HandleFactory interface {
	Create(payload []byte, ref Ref) (DisplayHandle, error)
}

// FileHandleFactory backs display handles with files in a directory:
// URI is the file path, Release removes the file. This is the default
// binding for local tools — terminal and desktop viewers can open the
// path directly.
type FileHandleFactory struct {
	dir string
}

// NewFileHandleFactory creates the directory if needed and returns a
// factory writing handle files into it.
func NewFileHandleFactory(dir string) (*FileHandleFactory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: creating handle directory: %w", err)
	}
	return &FileHandleFactory{dir: dir}, nil
}

// Create writes the payload to <dir>/<ref> and returns a handle whose
// URI is the file path.
func (f *FileHandleFactory) Create(payload []byte, ref Ref) (DisplayHandle, error) {
	path := filepath.Join(f.dir, string(ref))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return nil, fmt.Errorf("artifact: writing handle file: %w", err)
	}
	return &fileHandle{path: path}, nil
}

type fileHandle struct {
	path string
}

func (h *fileHandle) URI() string { return h.path }

func (h *fileHandle) Release() error {
	err := os.Remove(h.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifact: removing handle file: %w", err)
	}
	return nil
}

// MemoryHandleFactory is an in-memory HandleFactory for tests. It
// counts live handles so tests can assert that sessions release
// everything they create, and it reports double releases as errors.
type MemoryHandleFactory struct {
	mu      sync.Mutex
	created int
	live    atomic.Int64
}

// NewMemoryHandleFactory returns an empty counting factory.
func NewMemoryHandleFactory() *MemoryHandleFactory {
	return &MemoryHandleFactory{}
}

// Create returns a handle with a mem:// URI.
func (f *MemoryHandleFactory) Create(payload []byte, ref Ref) (DisplayHandle, error) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	f.live.Add(1)
	return &memoryHandle{factory: f, uri: "mem://" + string(ref)}, nil
}

// Live returns the number of handles created but not yet released.
func (f *MemoryHandleFactory) Live() int { return int(f.live.Load()) }

// Created returns the total number of handles ever created.
func (f *MemoryHandleFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

type memoryHandle struct {
	factory  *MemoryHandleFactory
	uri      string
	released atomic.Bool
}

func (h *memoryHandle) URI() string { return h.uri }

func (h *memoryHandle) Release() error {
	if h.released.Swap(true) {
		return errors.New("artifact: handle released twice")
	}
	h.factory.live.Add(-1)
	return nil
}
