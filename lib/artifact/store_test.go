// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutGetAll(t *testing.T) {
	factory := NewMemoryHandleFactory()
	store := NewStore(factory)

	// Insert out of order; All must sort by index.
	for _, index := range []uint32{2, 0, 1} {
		payload := []byte{byte(index), 0xaa, 0xbb}
		art, err := store.Put(index, payload, 800, 1000)
		if err != nil {
			t.Fatalf("Put(%d): %v", index, err)
		}
		if art.Index != index || art.Width != 800 || art.Height != 1000 {
			t.Fatalf("artifact = %+v", art)
		}
		if art.Handle == nil || art.Handle.URI() == "" {
			t.Fatalf("artifact %d has no display handle", index)
		}
	}

	if store.Len() != 3 {
		t.Fatalf("Len = %d, want 3", store.Len())
	}
	all := store.All()
	for i, art := range all {
		if art.Index != uint32(i) {
			t.Fatalf("All()[%d].Index = %d", i, art.Index)
		}
	}

	art, ok := store.Get(1)
	if !ok || art.Payload[0] != 1 {
		t.Fatalf("Get(1) = %+v, %v", art, ok)
	}
	if _, ok := store.Get(9); ok {
		t.Fatal("Get(9) found a phantom artifact")
	}
	if factory.Live() != 3 {
		t.Fatalf("live handles = %d, want 3", factory.Live())
	}
}

func TestPutDuplicateIndexRejected(t *testing.T) {
	factory := NewMemoryHandleFactory()
	store := NewStore(factory)

	if _, err := store.Put(0, []byte("one"), 1, 1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(0, []byte("two"), 1, 1); !errors.Is(err, ErrDuplicateIndex) {
		t.Fatalf("duplicate Put error = %v, want ErrDuplicateIndex", err)
	}

	// The rejected duplicate's handle must not leak.
	if factory.Live() != 1 {
		t.Fatalf("live handles = %d, want 1", factory.Live())
	}
	art, _ := store.Get(0)
	if string(art.Payload) != "one" {
		t.Fatalf("payload = %q, original was replaced", art.Payload)
	}
}

func TestReleaseAllReleasesEveryHandleOnce(t *testing.T) {
	factory := NewMemoryHandleFactory()
	store := NewStore(factory)

	for i := uint32(0); i < 5; i++ {
		if _, err := store.Put(i, []byte{byte(i)}, 1, 1); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	if err := store.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if factory.Live() != 0 {
		t.Fatalf("live handles after ReleaseAll = %d, want 0", factory.Live())
	}
	if store.Len() != 0 {
		t.Fatalf("Len after ReleaseAll = %d, want 0", store.Len())
	}

	// Idempotent: a second call (and a call on an empty store) is a
	// no-op, and releases nothing twice.
	if err := store.ReleaseAll(); err != nil {
		t.Fatalf("second ReleaseAll: %v", err)
	}
	if factory.Created() != 5 || factory.Live() != 0 {
		t.Fatalf("created %d live %d after double release", factory.Created(), factory.Live())
	}
}

func TestFileHandleFactoryWritesAndRemoves(t *testing.T) {
	dir := t.TempDir()
	factory, err := NewFileHandleFactory(filepath.Join(dir, "handles"))
	if err != nil {
		t.Fatalf("NewFileHandleFactory: %v", err)
	}

	payload := []byte("slice payload")
	handle, err := factory.Create(payload, ComputeRef(payload))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	onDisk, err := os.ReadFile(handle.URI())
	if err != nil {
		t.Fatalf("reading handle file: %v", err)
	}
	if !bytes.Equal(onDisk, payload) {
		t.Fatal("handle file content differs from payload")
	}

	if err := handle.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(handle.URI()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("handle file still exists after Release: %v", err)
	}
	// Releasing an already-removed file is not an error.
	if err := handle.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestComputeRefStableAndDistinct(t *testing.T) {
	a := ComputeRef([]byte("payload a"))
	if a != ComputeRef([]byte("payload a")) {
		t.Fatal("same payload produced different refs")
	}
	if a == ComputeRef([]byte("payload b")) {
		t.Fatal("different payloads produced the same ref")
	}
	if !strings.HasPrefix(string(a), "slc-") || len(a) != len("slc-")+16 {
		t.Fatalf("ref format = %q", a)
	}
}
