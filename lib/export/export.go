// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package export assembles stored slice artifacts into a downloadable
// archive or document. Assembly is tolerant of individual bad slices:
// a slice that cannot be read or rendered is skipped and reported, and
// the export fails only when nothing at all could be included.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sliceforge/sliceforge/lib/artifact"
)

// Format selects the container an export produces.
type Format uint8

const (
	// Archive is a ZIP file with one entry per selected slice.
	Archive Format = iota

	// Document is a PDF with one page per selected slice.
	Document
)

// String returns the format's identifier.
func (f Format) String() string {
	switch f {
	case Archive:
		return "archive"
	case Document:
		return "document"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Ext returns the output file extension, dot included.
func (f Format) Ext() string {
	switch f {
	case Document:
		return ".pdf"
	default:
		return ".zip"
	}
}

// Job describes one export request.
type Job struct {
	// Format selects archive or document output.
	Format Format

	// Indices are the selected slice indices. Order does not matter;
	// assembly always proceeds in ascending index order.
	Indices []uint32

	// OutputName is the user-chosen base name. The format's extension
	// is appended unless already present.
	OutputName string
}

// SkipReport records one slice that could not be included.
type SkipReport struct {
	Index uint32
	Err   error
}

// Result is a completed export.
type Result struct {
	// Data is the assembled container, ready to write out.
	Data []byte

	// Entries is how many slices made it in.
	Entries int

	// Skipped lists the slices that did not.
	Skipped []SkipReport

	// Name is the output file name, extension included.
	Name string
}

var (
	// ErrEmptySelection is returned for a job with no indices.
	ErrEmptySelection = errors.New("export: empty selection")

	// ErrNothingExported is returned when every selected slice failed.
	ErrNothingExported = errors.New("export: no slice could be exported")
)

// Assembler builds export containers from an artifact store.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler returns an Assembler logging through logger. A nil
// logger falls back to slog.Default.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger}
}

// Assemble builds the container described by job from store. Slices
// that cannot be read or rendered are skipped and reported in the
// result; the call fails only when the selection is empty, the context
// is cancelled, or zero slices succeed.
func (a *Assembler) Assemble(ctx context.Context, job Job, store *artifact.Store) (*Result, error) {
	if len(job.Indices) == 0 {
		return nil, ErrEmptySelection
	}

	indices := slices.Clone(job.Indices)
	slices.Sort(indices)
	indices = slices.Compact(indices)

	var result *Result
	var err error
	switch job.Format {
	case Document:
		result, err = a.assembleDocument(ctx, indices, store)
	default:
		result, err = a.assembleArchive(ctx, indices, store)
	}
	if err != nil {
		return nil, err
	}

	result.Name = OutputName(job.OutputName, job.Format)
	for _, skip := range result.Skipped {
		a.logger.Warn("slice skipped during export",
			"format", job.Format.String(),
			"index", skip.Index,
			"error", skip.Err,
		)
	}
	a.logger.Info("export assembled",
		"format", job.Format.String(),
		"name", result.Name,
		"entries", result.Entries,
		"skipped", len(result.Skipped),
		"bytes", len(result.Data),
	)
	return result, nil
}

// OutputName appends the format's extension to name unless name
// already carries it, compared case-insensitively.
func OutputName(name string, format Format) string {
	ext := format.Ext()
	if strings.EqualFold(filepath.Ext(name), ext) {
		return name
	}
	return name + ext
}
