// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package raster handles image decode, slice geometry, and per-slice
// encode for the slicing pipeline. Slicing is strictly vertical: every
// slice spans the full image width and a bounded run of rows.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	// Registered input codecs for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Slice height bounds in pixels. Heights outside this range are
// rejected before any task is spawned.
const (
	MinSliceHeight = 100
	MaxSliceHeight = 5000
)

// DefaultJPEGQuality is the encode quality for lossy slice payloads.
const DefaultJPEGQuality = 90

// ErrInvalidSliceHeight indicates a slice height outside
// [MinSliceHeight, MaxSliceHeight].
var ErrInvalidSliceHeight = errors.New("raster: slice height out of range")

// ErrNilImage indicates a missing source image.
var ErrNilImage = errors.New("raster: nil source image")

// ErrUnknownFormat indicates a payload whose magic bytes match no
// supported encode format.
var ErrUnknownFormat = errors.New("raster: unknown image format")

// ValidateSliceHeight checks h against the allowed bounds.
func ValidateSliceHeight(h int) error {
	if h < MinSliceHeight || h > MaxSliceHeight {
		return fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidSliceHeight, h, MinSliceHeight, MaxSliceHeight)
	}
	return nil
}

// Format identifies the encoding of a slice payload.
type Format uint8

const (
	// FormatJPEG is the lossy default (quality DefaultJPEGQuality).
	FormatJPEG Format = iota
	// FormatPNG is the lossless alternative.
	FormatPNG
)

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// Ext returns the file extension for the format, with leading dot.
func (f Format) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// ImageType returns the format name used by PDF image registration.
func (f Format) ImageType() string {
	if f == FormatPNG {
		return "PNG"
	}
	return "JPG"
}

// ParseFormat parses a format from its string name.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Decode reads and decodes a source image. JPEG, PNG, and GIF inputs
// are accepted. Returns the decoded image and the format name reported
// by the codec.
func Decode(r io.Reader) (image.Image, string, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("raster: decoding source image: %w", err)
	}
	return img, name, nil
}

// Magic prefixes for Sniff.
var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
)

// Sniff identifies the encode format of a slice payload from its magic
// bytes. Only formats EncodeSlice produces are recognized.
func Sniff(payload []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(payload, jpegMagic):
		return FormatJPEG, nil
	case bytes.HasPrefix(payload, pngMagic):
		return FormatPNG, nil
	default:
		return 0, ErrUnknownFormat
	}
}
