// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// subImager is implemented by the stdlib image types. When the source
// supports it, cropping shares pixel memory instead of copying.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the portion of img covered by the extent. The extent's
// Y is relative to the image's top edge, so images with a non-zero
// Bounds().Min are handled correctly.
func Crop(img image.Image, extent Extent) (image.Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	bounds := img.Bounds()
	rect := image.Rect(
		bounds.Min.X,
		bounds.Min.Y+extent.Y,
		bounds.Max.X,
		bounds.Min.Y+extent.Y+extent.Height,
	)
	if !rect.In(bounds) {
		return nil, fmt.Errorf("raster: extent %d rows [%d, %d) outside image height %d",
			extent.Index, extent.Y, extent.Y+extent.Height, bounds.Dy())
	}

	if s, ok := img.(subImager); ok {
		return s.SubImage(rect), nil
	}

	// Fallback for exotic image implementations: copy into RGBA.
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, nil
}

// EncodeSlice crops the extent from img and encodes it in the given
// format. Quality applies to lossy formats only; pass a non-positive
// quality to use DefaultJPEGQuality.
func EncodeSlice(img image.Image, extent Extent, format Format, quality int) ([]byte, error) {
	cropped, err := Crop(img, extent)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: quality})
	case FormatPNG:
		err = png.Encode(&buf, cropped)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, uint8(format))
	}
	if err != nil {
		return nil, fmt.Errorf("raster: encoding slice %d as %s: %w", extent.Index, format, err)
	}
	return buf.Bytes(), nil
}
