// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// spillRecord tracks a payload written to disk. The compression
// metadata lives here, not in the file, because spill files never
// outlive the process: ReleaseAll removes them with the session.
type spillRecord struct {
	path string

	// size is the uncompressed payload length.
	size int

	// compressed is true when the file holds an lz4 block rather
	// than raw bytes.
	compressed bool
}

// spill writes the artifact's payload to the spill directory,
// lz4-compressed when compression actually shrinks it. Encoded image
// payloads are often incompressible; those are stored raw.
func (s *Store) spill(art *SliceArtifact) (*spillRecord, error) {
	if err := os.MkdirAll(s.spillDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spill directory: %w", err)
	}

	data := art.Payload
	record := &spillRecord{
		path: filepath.Join(s.spillDir, string(art.Ref)+".spill"),
		size: len(data),
	}

	if compressed, ok := compressBlock(data); ok {
		data = compressed
		record.compressed = true
	}

	if err := os.WriteFile(record.path, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing spill file: %w", err)
	}
	return record, nil
}

// compressBlock lz4-compresses data. Returns ok=false when the data is
// incompressible (compression would not shrink it).
func compressBlock(data []byte) ([]byte, bool) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	var compressor lz4.Compressor
	written, err := compressor.CompressBlock(data, destination)
	if err != nil || written == 0 || written >= len(data) {
		return nil, false
	}
	return destination[:written], true
}

func readSpill(record *spillRecord) ([]byte, error) {
	data, err := os.ReadFile(record.path)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading spill file: %w", err)
	}
	if !record.compressed {
		if len(data) != record.size {
			return nil, fmt.Errorf("artifact: spill file %s has %d bytes, expected %d",
				record.path, len(data), record.size)
		}
		return data, nil
	}

	destination := make([]byte, record.size)
	read, err := lz4.UncompressBlock(data, destination)
	if err != nil {
		return nil, fmt.Errorf("artifact: lz4 decompress: %w", err)
	}
	if read != record.size {
		return nil, fmt.Errorf("artifact: lz4 decompress: got %d bytes, expected %d", read, record.size)
	}
	return destination, nil
}

func removeSpill(record *spillRecord) error {
	if err := os.Remove(record.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
