// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/export"
	"github.com/sliceforge/sliceforge/lib/raster"
	"github.com/sliceforge/sliceforge/lib/slicer"
)

const testTimeout = 10 * time.Second

func tallImage(height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 40, height))
	for y := 0; y < height; y++ {
		c := color.RGBA{R: uint8(y % 256), G: 120, B: 200, A: 255}
		for x := 0; x < 40; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// harness wires a controller to a buffered event channel and a
// counting handle factory.
type harness struct {
	controller *Controller
	factory    *artifact.MemoryHandleFactory
	events     chan Event
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		factory: artifact.NewMemoryHandleFactory(),
		events:  make(chan Event, 128),
	}
	opts = append(opts, WithObserver(func(e Event) { h.events <- e }))
	h.controller = NewController(h.factory, opts...)
	return h
}

// waitState receives events until one matches the wanted state.
func (h *harness) waitState(t *testing.T, want State) Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case e := <-h.events:
			if e.State == want {
				return e
			}
		case <-deadline:
			t.Fatalf("no %v event within %v", want, testTimeout)
		}
	}
}

func TestFullSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	if err := c.StartSession(context.Background(), tallImage(2500), 1000); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if got := c.State(); got != StateProcessing {
		t.Fatalf("state after start = %v", got)
	}

	h.waitState(t, StateReady)

	artifacts := c.Artifacts()
	if len(artifacts) != 3 {
		t.Fatalf("stored %d slices, want 3", len(artifacts))
	}
	wantHeights := []uint32{1000, 1000, 500}
	for i, a := range artifacts {
		if a.Index != uint32(i) {
			t.Errorf("artifact %d has index %d", i, a.Index)
		}
		if a.Height != wantHeights[i] {
			t.Errorf("slice %d height = %d, want %d", i, a.Height, wantHeights[i])
		}
	}

	// Every produced slice starts selected.
	if got := c.Selected(); len(got) != 3 {
		t.Fatalf("selected = %v, want all three", got)
	}

	c.Toggle(1)
	if got := c.Selected(); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("selected after toggle = %v, want [0 2]", got)
	}

	result, err := c.Export(context.Background(), export.Archive, "out")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state after export = %v, want ready", c.State())
	}
	zr, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "slice_1.jpg" || zr.File[1].Name != "slice_2.jpg" {
		names := make([]string, len(zr.File))
		for i, f := range zr.File {
			names[i] = f.Name
		}
		t.Fatalf("archive entries = %v", names)
	}
}

func TestProgressEventsAreMonotonic(t *testing.T) {
	h := newHarness(t)
	if err := h.controller.StartSession(context.Background(), tallImage(2500), 1000); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	last := -1
	deadline := time.After(testTimeout)
	for {
		select {
		case e := <-h.events:
			if e.Percent >= 0 {
				if e.Percent < last {
					t.Fatalf("progress went backwards: %d after %d", e.Percent, last)
				}
				last = e.Percent
			}
			if e.State == StateReady {
				if last != 100 {
					t.Fatalf("final progress = %d, want 100", last)
				}
				return
			}
		case <-deadline:
			t.Fatal("session never reached ready")
		}
	}
}

func TestStartSessionValidationLeavesSessionIntact(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	if err := c.StartSession(context.Background(), tallImage(300), 150); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.waitState(t, StateReady)
	stored := len(c.Artifacts())

	if err := c.StartSession(context.Background(), nil, 1000); !errors.Is(err, raster.ErrNilImage) {
		t.Fatalf("nil image error = %v", err)
	}
	if err := c.StartSession(context.Background(), tallImage(300), 50); !errors.Is(err, raster.ErrInvalidSliceHeight) {
		t.Fatalf("bad height error = %v", err)
	}

	if c.State() != StateReady || len(c.Artifacts()) != stored {
		t.Fatal("failed validation disturbed the existing session")
	}
}

func TestSupersessionReleasesEveryHandle(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	gate := make(chan struct{})
	blockAfterFirst := func(img image.Image, extent raster.Extent, format raster.Format, quality int) ([]byte, error) {
		if extent.Index > 0 {
			<-gate
		}
		return raster.EncodeSlice(img, extent, format, quality)
	}
	h.controller.slicing = slicer.Options{Encode: blockAfterFirst}

	if err := c.StartSession(context.Background(), tallImage(2500), 1000); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Wait for the first session's chunk 0 to land in the store.
	deadline := time.After(testTimeout)
	for c.IsSelected(0) == false {
		select {
		case <-h.events:
		case <-deadline:
			t.Fatal("first chunk never stored")
		}
	}
	if h.factory.Live() != 1 {
		t.Fatalf("live handles = %d, want 1", h.factory.Live())
	}

	// Supersede while the first task is mid-slice.
	h.controller.slicing = slicer.Options{}
	if err := c.StartSession(context.Background(), tallImage(1200), 400); err != nil {
		t.Fatalf("second StartSession: %v", err)
	}
	close(gate)

	h.waitState(t, StateReady)

	if got := len(c.Artifacts()); got != 3 {
		t.Fatalf("stored %d slices, want 3 from the second session", got)
	}
	// One handle from the first session, three from the second; the
	// first was released exactly once by the supersession cleanup.
	if h.factory.Live() != 3 {
		t.Fatalf("live handles = %d, want 3", h.factory.Live())
	}

	c.Reset()
	if h.factory.Live() != 0 {
		t.Fatalf("live handles after reset = %d, want 0", h.factory.Live())
	}
}

func TestSlicingErrorTearsDownToIdle(t *testing.T) {
	h := newHarness(t)

	failAt := func(img image.Image, extent raster.Extent, format raster.Format, quality int) ([]byte, error) {
		if extent.Index == 1 {
			return nil, errors.New("encoder broke")
		}
		return raster.EncodeSlice(img, extent, format, quality)
	}
	h.controller.slicing = slicer.Options{Encode: failAt}

	if err := h.controller.StartSession(context.Background(), tallImage(2500), 1000); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	event := h.waitState(t, StateIdle)
	if !errors.Is(event.Err, ErrSlicingFailed) {
		t.Fatalf("event error = %v, want ErrSlicingFailed", event.Err)
	}
	if h.controller.State() != StateIdle {
		t.Fatalf("state = %v, want idle", h.controller.State())
	}
	if len(h.controller.Artifacts()) != 0 || h.factory.Live() != 0 {
		t.Fatal("failed session left artifacts or live handles behind")
	}
	if got := h.controller.Selected(); len(got) != 0 {
		t.Fatalf("selection after failure = %v", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	if err := c.StartSession(context.Background(), tallImage(500), 200); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.waitState(t, StateReady)

	c.Reset()
	if c.State() != StateIdle || len(c.Artifacts()) != 0 || h.factory.Live() != 0 {
		t.Fatal("reset did not clear the session")
	}
	c.Reset()
	c.Reset()
	if c.State() != StateIdle || h.factory.Live() != 0 {
		t.Fatal("repeated reset changed observable state")
	}
}

func TestExportRequiresReadySession(t *testing.T) {
	h := newHarness(t)
	if _, err := h.controller.Export(context.Background(), export.Archive, "out"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("export from idle = %v, want ErrNotReady", err)
	}
}

func TestToggleUnknownIndexIsNoOp(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	if err := c.StartSession(context.Background(), tallImage(300), 150); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.waitState(t, StateReady)

	c.Toggle(99)
	if got := c.Selected(); len(got) != 2 {
		t.Fatalf("selected = %v after toggling an unknown index", got)
	}

	c.DeselectAll()
	if got := c.Selected(); len(got) != 0 {
		t.Fatalf("selected after deselect all = %v", got)
	}
	c.SelectAll()
	if got := c.Selected(); len(got) != 2 {
		t.Fatalf("selected after select all = %v", got)
	}
}

func TestExportEmptySelection(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	if err := c.StartSession(context.Background(), tallImage(300), 150); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.waitState(t, StateReady)

	c.DeselectAll()
	if _, err := c.Export(context.Background(), export.Archive, "out"); !errors.Is(err, export.ErrEmptySelection) {
		t.Fatalf("error = %v, want ErrEmptySelection", err)
	}
	// The failed export still returns the controller to ready.
	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready", c.State())
	}
}

func TestStartSessionReader(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	var buf bytes.Buffer
	if err := png.Encode(&buf, tallImage(400)); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	if err := c.StartSessionReader(context.Background(), &buf, 200); err != nil {
		t.Fatalf("StartSessionReader: %v", err)
	}

	h.waitState(t, StateUploading)
	h.waitState(t, StateReady)
	if got := len(c.Artifacts()); got != 2 {
		t.Fatalf("stored %d slices, want 2", got)
	}
}

func TestStartSessionReaderDecodeFailure(t *testing.T) {
	h := newHarness(t)
	err := h.controller.StartSessionReader(context.Background(), bytes.NewReader([]byte("not an image")), 200)
	if err == nil {
		t.Fatal("decode of junk succeeded")
	}
	event := h.waitState(t, StateIdle)
	if event.Err == nil {
		t.Fatal("idle event carries no error")
	}
	if h.controller.State() != StateIdle {
		t.Fatalf("state = %v, want idle", h.controller.State())
	}
}

func TestSelectionIsAlwaysSubsetOfStore(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	if err := c.StartSession(context.Background(), tallImage(900), 300); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.waitState(t, StateReady)

	stored := make(map[uint32]bool)
	for _, a := range c.Artifacts() {
		stored[a.Index] = true
	}
	for _, index := range c.Selected() {
		if !stored[index] {
			t.Fatalf("selected index %d not in store", index)
		}
	}
}
