// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns the lifecycle of one slicing session: the
// background slicing task, the artifact store holding its output, and
// the selection marking which slices to export. The controller is a
// small state machine; every resource transition happens inside it so
// a superseded or failed session can never leak display handles.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/export"
	"github.com/sliceforge/sliceforge/lib/raster"
	"github.com/sliceforge/sliceforge/lib/slicer"
)

// State is the controller's lifecycle position.
type State uint8

const (
	// StateIdle means no session exists. The store is empty.
	StateIdle State = iota

	// StateUploading means a source image is being read and decoded.
	StateUploading

	// StateProcessing means a slicing task is running.
	StateProcessing

	// StateReady means all slices are stored and selectable.
	StateReady

	// StateExporting means an export is being assembled.
	StateExporting
)

// String returns the state's identifier.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateProcessing:
		return "processing"
	case StateReady:
		return "ready"
	case StateExporting:
		return "exporting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Event is one observable controller transition. Percent and NewIndex
// are -1 when the event carries no progress or chunk information.
type Event struct {
	State    State
	Percent  int
	NewIndex int64
	Err      error
}

func stateEvent(s State) Event {
	return Event{State: s, Percent: -1, NewIndex: -1}
}

var (
	// ErrExportInProgress rejects operations that would disturb a
	// running export.
	ErrExportInProgress = errors.New("session: export in progress")

	// ErrNotReady rejects an export before all slices are stored.
	ErrNotReady = errors.New("session: no completed session to export")

	// ErrSlicingFailed wraps a task-reported failure.
	ErrSlicingFailed = errors.New("session: slicing failed")
)

// Controller drives sessions. All methods are safe for concurrent
// use. Events are delivered to the observer callback outside the
// controller's lock, from whichever goroutine triggered the
// transition.
type Controller struct {
	logger    *slog.Logger
	factory   artifact.HandleFactory
	storeOpts []artifact.StoreOption
	slicing   slicer.Options
	assembler *export.Assembler
	observer  func(Event)

	mu        sync.Mutex
	state     State
	token     uint64
	store     *artifact.Store
	selection *Selection
	task      *slicer.Task
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithObserver sets the event callback.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithSlicingOptions sets the encode format and quality used by
// slicing tasks.
func WithSlicingOptions(opts slicer.Options) Option {
	return func(c *Controller) { c.slicing = opts }
}

// WithStoreOptions forwards options to each session's artifact store.
func WithStoreOptions(opts ...artifact.StoreOption) Option {
	return func(c *Controller) { c.storeOpts = opts }
}

// NewController returns an idle controller creating display handles
// through factory.
func NewController(factory artifact.HandleFactory, opts ...Option) *Controller {
	c := &Controller{
		logger:  slog.Default(),
		factory: factory,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.assembler = export.NewAssembler(c.logger)
	c.store = artifact.NewStore(c.factory, c.storeOpts...)
	c.selection = NewSelection()
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Artifacts returns the stored slices in ascending index order.
func (c *Controller) Artifacts() []*artifact.SliceArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All()
}

// StartSession begins slicing img at sliceHeight. Validation runs
// first; a validation failure leaves any prior session untouched. On
// success the prior session's task, artifacts, and selection are torn
// down in one step before the new task starts.
func (c *Controller) StartSession(ctx context.Context, img image.Image, sliceHeight int) error {
	if img == nil {
		return raster.ErrNilImage
	}
	if err := raster.ValidateSliceHeight(sliceHeight); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateExporting {
		c.mu.Unlock()
		return ErrExportInProgress
	}
	c.cleanupLocked()
	c.token++
	token := c.token

	opts := c.slicing
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	task, err := slicer.Start(ctx, token, img, sliceHeight, opts)
	if err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}
	c.task = task
	c.state = StateProcessing
	c.mu.Unlock()

	c.logger.Info("session started", "token", token, "slice_height", sliceHeight)
	c.emit(stateEvent(StateProcessing))
	go c.pump(task)
	return nil
}

// StartSessionReader decodes an image from r, reporting the decode
// through the Uploading state, then starts a session on it. A decode
// failure tears the session down to Idle.
func (c *Controller) StartSessionReader(ctx context.Context, r io.Reader, sliceHeight int) error {
	if err := raster.ValidateSliceHeight(sliceHeight); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateExporting {
		c.mu.Unlock()
		return ErrExportInProgress
	}
	c.state = StateUploading
	c.mu.Unlock()
	c.emit(stateEvent(StateUploading))

	img, formatName, err := raster.Decode(r)
	if err != nil {
		c.mu.Lock()
		c.cleanupLocked()
		c.state = StateIdle
		c.mu.Unlock()
		event := stateEvent(StateIdle)
		event.Err = err
		c.emit(event)
		return err
	}
	c.logger.Info("source image decoded",
		"format", formatName,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return c.StartSession(ctx, img, sliceHeight)
}

// pump moves task envelopes into the controller until the task's
// channel closes. One pump goroutine exists per task; a superseded
// task's pump drains harmlessly because its token no longer matches.
func (c *Controller) pump(task *slicer.Task) {
	for envelope := range task.Messages() {
		c.dispatch(envelope)
	}
}

func (c *Controller) dispatch(envelope slicer.Envelope) {
	c.mu.Lock()
	if envelope.Token != c.token {
		c.mu.Unlock()
		c.logger.Debug("dropping stale task message",
			"token", envelope.Token,
			"current", c.token,
			"kind", envelope.Kind.String(),
		)
		return
	}

	var event Event
	switch envelope.Kind {
	case slicer.KindProgress:
		event = stateEvent(c.state)
		event.Percent = envelope.Percent

	case slicer.KindChunk:
		chunk := envelope.Chunk
		if chunk == nil {
			c.mu.Unlock()
			return
		}
		if _, err := c.store.Put(chunk.Index, chunk.Payload, chunk.Width, chunk.Height); err != nil {
			c.mu.Unlock()
			c.logger.Error("storing slice failed", "index", chunk.Index, "error", err)
			return
		}
		c.selection.Add(chunk.Index)
		event = stateEvent(c.state)
		event.NewIndex = int64(chunk.Index)

	case slicer.KindDone:
		c.state = StateReady
		event = stateEvent(StateReady)
		event.Percent = 100

	case slicer.KindError:
		c.cleanupLocked()
		c.state = StateIdle
		event = stateEvent(StateIdle)
		event.Err = fmt.Errorf("%w: %s", ErrSlicingFailed, envelope.Message)

	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.emit(event)
}

// Export assembles the current selection into the given format. Only a
// Ready session can export; the controller passes through Exporting
// and returns to Ready whether or not the assembly succeeds.
func (c *Controller) Export(ctx context.Context, format export.Format, outputName string) (*export.Result, error) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		if c.state == StateExporting {
			return nil, ErrExportInProgress
		}
		return nil, ErrNotReady
	}
	job := export.Job{
		Format:     format,
		Indices:    c.selection.Indices(),
		OutputName: outputName,
	}
	store := c.store
	token := c.token
	c.state = StateExporting
	c.mu.Unlock()
	c.emit(stateEvent(StateExporting))

	result, err := c.assembler.Assemble(ctx, job, store)

	c.mu.Lock()
	// A Reset during assembly moved the controller on; leave its
	// state alone in that case.
	if c.state == StateExporting && c.token == token {
		c.state = StateReady
	}
	state := c.state
	c.mu.Unlock()

	event := stateEvent(state)
	event.Err = err
	c.emit(event)
	return result, err
}

// Reset tears the session down to Idle. Safe to call in any state and
// idempotent.
func (c *Controller) Reset() {
	c.mu.Lock()
	wasIdle := c.state == StateIdle && c.store.Len() == 0
	c.cleanupLocked()
	c.state = StateIdle
	c.mu.Unlock()
	if !wasIdle {
		c.emit(stateEvent(StateIdle))
	}
}

// cleanupLocked cancels the running task, releases every artifact, and
// clears the selection. Callers hold c.mu.
func (c *Controller) cleanupLocked() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	if err := c.store.ReleaseAll(); err != nil {
		c.logger.Error("releasing artifacts failed", "error", err)
	}
	c.selection.Clear()
}

func (c *Controller) emit(event Event) {
	if c.observer != nil {
		c.observer(event)
	}
}

// Toggle flips the selection state of index. Unknown indices are
// ignored, keeping the selection a subset of the store.
func (c *Controller) Toggle(index uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.store.Contains(index) {
		return
	}
	c.selection.Toggle(index)
}

// SelectAll selects every stored slice.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, index := range c.store.Indices() {
		c.selection.Add(index)
	}
}

// DeselectAll clears the selection without touching the store.
func (c *Controller) DeselectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// Selected returns the selected indices in ascending order.
func (c *Controller) Selected() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Indices()
}

// IsSelected reports whether index is selected.
func (c *Controller) IsSelected(index uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Contains(index)
}
