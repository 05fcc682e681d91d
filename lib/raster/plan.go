// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package raster

import (
	"errors"
	"fmt"
)

// ErrEmptyImage indicates a source image with no rows.
var ErrEmptyImage = errors.New("raster: image height must be positive")

// Extent describes one planned slice: a contiguous run of rows
// starting at Y (relative to the image's top edge) spanning Height
// rows across the full image width.
type Extent struct {
	// Index is the 0-based slice position.
	Index int

	// Y is the top row of the slice, relative to the image top.
	Y int

	// Height is the slice height in rows. Equal to the requested
	// slice height for all but possibly the last extent.
	Height int
}

// Plan computes the slice extents for an image of the given height cut
// into sliceHeight-row slices: ceil(imageHeight/sliceHeight) extents,
// contiguous and gap-free, the last one covering the remainder.
func Plan(imageHeight, sliceHeight int) ([]Extent, error) {
	if imageHeight <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrEmptyImage, imageHeight)
	}
	if err := ValidateSliceHeight(sliceHeight); err != nil {
		return nil, err
	}

	count := (imageHeight + sliceHeight - 1) / sliceHeight
	extents := make([]Extent, count)
	for i := range extents {
		y := i * sliceHeight
		height := sliceHeight
		if remaining := imageHeight - y; remaining < height {
			height = remaining
		}
		extents[i] = Extent{Index: i, Y: y, Height: height}
	}
	return extents, nil
}
