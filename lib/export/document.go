// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/go-pdf/fpdf"

	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/raster"
)

// Layout constants for document pages. Pixel dimensions map to points
// at 96 DPI (1 px = 0.75 pt).
const (
	pointsPerPixel = 72.0 / 96.0
	pageMargin     = 24.0
)

// documentItem is a slice payload that already passed validation.
// fpdf errors are sticky and poison the whole document, so every
// payload is decoded up front and only clean ones reach the builder.
type documentItem struct {
	index   uint32
	payload []byte
	format  raster.Format
	width   float64
	height  float64
}

func (a *Assembler) assembleDocument(ctx context.Context, indices []uint32, store *artifact.Store) (*Result, error) {
	result := &Result{}

	var items []documentItem
	for _, index := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := loadDocumentItem(index, store)
		if err != nil {
			result.Skipped = append(result.Skipped, SkipReport{Index: index, Err: err})
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ErrNothingExported
	}

	data, err := buildDocument(items)
	if err != nil {
		return nil, err
	}
	result.Data = data
	result.Entries = len(items)
	return result, nil
}

func loadDocumentItem(index uint32, store *artifact.Store) (documentItem, error) {
	payload, err := store.Payload(index)
	if err != nil {
		return documentItem{}, err
	}
	format, err := raster.Sniff(payload)
	if err != nil {
		return documentItem{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return documentItem{}, fmt.Errorf("decoding slice %d: %w", index, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return documentItem{}, fmt.Errorf("slice %d has empty dimensions", index)
	}
	return documentItem{
		index:   index,
		payload: payload,
		format:  format,
		width:   float64(cfg.Width) * pointsPerPixel,
		height:  float64(cfg.Height) * pointsPerPixel,
	}, nil
}

// buildDocument renders one page per item. Pages take the item's pixel
// dimensions in points, landscape when wider than tall, and the image
// is centered and uniformly scaled to fit inside the page margin.
func buildDocument(items []documentItem) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: items[0].width, Ht: items[0].height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)

	for _, item := range items {
		orientation := "P"
		size := fpdf.SizeType{Wd: item.width, Ht: item.height}
		if item.width > item.height {
			orientation = "L"
			size = fpdf.SizeType{Wd: item.height, Ht: item.width}
		}
		pdf.AddPageFormat(orientation, size)

		name := fmt.Sprintf("slice-%d", item.index)
		opts := fpdf.ImageOptions{ImageType: item.format.ImageType()}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(item.payload))

		x, y, w, h := placeImage(item.width, item.height)
		pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("building document: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}
	if buf.Len() == 0 {
		return nil, errors.New("building document: empty output")
	}
	return buf.Bytes(), nil
}

// placeImage centers an image of the given point dimensions on a page
// of the same dimensions, scaled down uniformly so it clears a
// pageMargin border on all sides.
func placeImage(pageW, pageH float64) (x, y, w, h float64) {
	availW := pageW - 2*pageMargin
	availH := pageH - 2*pageMargin
	if availW <= 0 || availH <= 0 {
		// Page smaller than twice the margin; fill it edge to edge.
		return 0, 0, pageW, pageH
	}
	scale := availW / pageW
	if s := availH / pageH; s < scale {
		scale = s
	}
	w = pageW * scale
	h = pageH * scale
	x = (pageW - w) / 2
	y = (pageH - h) / 2
	return x, y, w, h
}
