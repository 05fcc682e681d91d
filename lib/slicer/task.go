// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package slicer runs the background slicing task: one goroutine that
// cuts a decoded raster image into height-bounded slices and streams
// Progress/Chunk/Done/Error envelopes over an owned, ordered channel.
//
// The task shares no mutable state with its consumer. Everything it
// produces travels through Messages(); cancellation travels through
// the context. Cancellation is best-effort — the task may complete
// naturally before it observes the signal, so consumers must also
// discard envelopes whose token no longer matches their session.
package slicer

import (
	"context"
	"image"
	"log/slog"

	"github.com/sliceforge/sliceforge/lib/raster"
)

// EncodeFunc produces the encoded payload for one slice extent. The
// default is raster.EncodeSlice; tests substitute a failing encoder to
// exercise the task's fatal-error path.
type EncodeFunc func(img image.Image, extent raster.Extent, format raster.Format, quality int) ([]byte, error)

// Options configures a slicing task.
type Options struct {
	// Format is the slice payload encoding. Defaults to FormatJPEG.
	Format raster.Format

	// Quality is the JPEG encode quality. Non-positive means
	// raster.DefaultJPEGQuality.
	Quality int

	// Logger receives task lifecycle records. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Encode overrides the slice encoder. Nil means
	// raster.EncodeSlice.
	Encode EncodeFunc
}

// messageBuffer is the envelope channel capacity. The consumer pumps
// continuously, so the buffer only absorbs short scheduling stalls.
const messageBuffer = 16

// Task is a running (or finished) slicing task. Create with Start.
type Task struct {
	token    uint64
	messages chan Envelope
	cancel   context.CancelFunc
	finished chan struct{}
}

// Start validates the inputs and spawns the slicing goroutine. The
// token tags every envelope the task emits. Validation failures
// (nil image, out-of-range slice height) are returned synchronously
// and no goroutine is spawned.
func Start(ctx context.Context, token uint64, img image.Image, sliceHeight int, opts Options) (*Task, error) {
	if img == nil {
		return nil, raster.ErrNilImage
	}
	if err := raster.ValidateSliceHeight(sliceHeight); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Encode == nil {
		opts.Encode = raster.EncodeSlice
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		token:    token,
		messages: make(chan Envelope, messageBuffer),
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	go task.run(ctx, img, sliceHeight, opts)
	return task, nil
}

// Token returns the session token the task stamps on its envelopes.
func (t *Task) Token() uint64 { return t.token }

// Messages returns the task's ordered envelope channel. The channel is
// closed after the terminal envelope (or after cancellation).
func (t *Task) Messages() <-chan Envelope { return t.messages }

// Cancel requests termination. Safe to call multiple times and after
// the task has finished.
func (t *Task) Cancel() { t.cancel() }

// Finished is closed when the task goroutine has exited and no more
// envelopes will be produced.
func (t *Task) Finished() <-chan struct{} { return t.finished }

func (t *Task) run(ctx context.Context, img image.Image, sliceHeight int, opts Options) {
	defer close(t.finished)
	defer close(t.messages)
	defer t.cancel()

	logger := opts.Logger.With("token", t.token)

	// send delivers env unless the task is cancelled. A false return
	// means the consumer is gone and the task should stop silently;
	// the consumer's token check makes any already-buffered envelopes
	// harmless.
	send := func(env Envelope) bool {
		select {
		case t.messages <- env:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(progressEnvelope(t.token, 0)) {
		return
	}

	extents, err := raster.Plan(img.Bounds().Dy(), sliceHeight)
	if err != nil {
		// Unreachable for inputs Start accepted; reported through the
		// normal terminal envelope regardless.
		logger.Error("slice planning failed", "error", err)
		send(errorEnvelope(t.token, err.Error()))
		return
	}

	logger.Debug("slicing started",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"slice_height", sliceHeight,
		"slices", len(extents),
	)

	width := uint32(img.Bounds().Dx())
	for i, extent := range extents {
		if ctx.Err() != nil {
			logger.Debug("slicing cancelled", "emitted", i)
			return
		}

		payload, err := opts.Encode(img, extent, opts.Format, opts.Quality)
		if err != nil {
			// One failed slice fails the whole task. Chunks already
			// emitted stay valid on the consumer side.
			logger.Warn("slice encode failed", "slice", extent.Index, "error", err)
			send(errorEnvelope(t.token, err.Error()))
			return
		}

		if !send(chunkEnvelope(t.token, Chunk{
			Index:   uint32(extent.Index),
			Payload: payload,
			Width:   width,
			Height:  uint32(extent.Height),
		})) {
			return
		}
		if !send(progressEnvelope(t.token, (i+1)*100/len(extents))) {
			return
		}
	}

	logger.Debug("slicing finished", "slices", len(extents))
	send(doneEnvelope(t.token))
}
