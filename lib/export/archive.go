// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zip"

	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/raster"
)

// assembleArchive writes one deflated ZIP entry per selected slice.
// Entry names are slice_{n}.{ext} where n is the 1-based position
// among the selected indices, so a partial selection still numbers its
// entries 1..k.
func (a *Assembler) assembleArchive(ctx context.Context, indices []uint32, store *artifact.Store) (*Result, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	result := &Result{}
	position := 0
	for _, index := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := store.Payload(index)
		if err != nil {
			result.Skipped = append(result.Skipped, SkipReport{Index: index, Err: err})
			continue
		}
		format, err := raster.Sniff(payload)
		if err != nil {
			result.Skipped = append(result.Skipped, SkipReport{Index: index, Err: err})
			continue
		}

		position++
		name := fmt.Sprintf("slice_%d%s", position, format.Ext())
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("creating archive entry %s: %w", name, err)
		}
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("writing archive entry %s: %w", name, err)
		}
		result.Entries++
	}

	if result.Entries == 0 {
		return nil, ErrNothingExported
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	result.Data = buf.Bytes()
	return result, nil
}
