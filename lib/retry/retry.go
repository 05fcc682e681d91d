// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry wraps transient-failure-prone operations in a
// classified, exponentially backed-off retry loop. It is the only
// place in sliceforge where backoff logic lives — components that need
// resilience wrap their calls in an Executor instead of rolling their
// own loops.
package retry

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sliceforge/sliceforge/lib/clock"
)

// Policy controls one Execute call.
type Policy struct {
	// Timeout bounds each individual attempt. Zero means no
	// per-attempt deadline.
	Timeout time.Duration

	// MaxRetries is how many times a retryable failure is retried
	// after the first attempt. MaxRetries=2 means at most 3 attempts.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Zero means uncapped.
	MaxDelay time.Duration

	// Factor is the exponential growth factor. Values below 1 are
	// treated as 1 (constant delay).
	Factor float64

	// Retryable lists the failure kinds worth retrying. A failure of
	// any other kind propagates immediately.
	Retryable []Kind

	// OnRetry, if set, is called after a retryable failure and before
	// the backoff wait. Attempt is the 1-based number of the attempt
	// that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is the backoff schedule used by Sliceforge network
// operations: 1s base doubling to a 30s cap.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Factor:     2,
		Retryable:  []Kind{KindConnectivity, KindTimeout, KindServerFault},
	}
}

func (p Policy) retryable(kind Kind) bool {
	for _, k := range p.Retryable {
		if k == kind {
			return true
		}
	}
	return false
}

// delay computes the wait before retry number attempt (0-based):
// BaseDelay * Factor^attempt, capped at MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(factor, float64(attempt)))
	if d < 0 {
		// Overflow from a large exponent.
		d = p.MaxDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Executor runs operations under retry policies. A single Executor is
// shared across callers; each Execute call keeps its own attempt
// counter keyed by its operation ID, so concurrent operations never
// cross-contaminate. The executor also carries the global
// connectivity-lost signal: flipping it offline aborts every in-flight
// attempt and backoff wait immediately.
type Executor struct {
	clk    clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	offline bool
	// signal is closed when the executor goes offline and replaced
	// with a fresh open channel when it comes back.
	signal chan struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClock sets the clock used for backoff waits. Tests inject
// clock.Fake.
func WithClock(clk clock.Clock) ExecutorOption {
	return func(e *Executor) { e.clk = clk }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor returns an online Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		clk:    clock.Real(),
		logger: slog.Default(),
		signal: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetOffline flips the global connectivity state. Going offline
// releases every goroutine waiting out a backoff and cancels running
// attempts; they fail with KindConnectivity.
func (e *Executor) SetOffline(offline bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if offline == e.offline {
		return
	}
	e.offline = offline
	if offline {
		close(e.signal)
	} else {
		e.signal = make(chan struct{})
	}
}

// Offline reports the current connectivity state.
func (e *Executor) Offline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offline
}

func (e *Executor) offlineSignal() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signal
}

// Execute runs fn under the policy. On success it returns nil. On
// failure it returns a *ClassifiedError carrying the final error, its
// kind, and the attempt count. Operation is an identifier for logs and
// error messages; it carries no shared state between calls.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, policy Policy) error {
	for attempt := 0; ; attempt++ {
		if e.Offline() {
			return &ClassifiedError{
				Op:       operation,
				Kind:     KindConnectivity,
				Attempts: attempt,
				Err:      ErrConnectivityLost,
			}
		}

		err := e.attempt(ctx, fn, policy)
		if err == nil {
			return nil
		}

		kind := Classify(err)
		if e.Offline() {
			// The attempt was cancelled by the offline signal (or
			// failed while the network vanished); report connectivity
			// rather than whatever shape the cancellation took.
			kind = KindConnectivity
		}

		classified := &ClassifiedError{
			Op:       operation,
			Kind:     kind,
			Attempts: attempt + 1,
			Err:      err,
		}

		if !policy.retryable(kind) || e.Offline() {
			return classified
		}
		if attempt >= policy.MaxRetries {
			classified.Exhausted = true
			return classified
		}
		if ctx.Err() != nil {
			return classified
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}
		wait := policy.delay(attempt)
		e.logger.Warn("operation failed, will retry",
			"op", operation,
			"attempt", attempt+1,
			"kind", kind.String(),
			"backoff", wait,
			"error", err,
		)

		select {
		case <-e.clk.After(wait):
		case <-e.offlineSignal():
			return &ClassifiedError{
				Op:       operation,
				Kind:     KindConnectivity,
				Attempts: attempt + 1,
				Err:      ErrConnectivityLost,
			}
		case <-ctx.Done():
			return &ClassifiedError{
				Op:       operation,
				Kind:     Classify(ctx.Err()),
				Attempts: attempt + 1,
				Err:      ctx.Err(),
			}
		}
	}
}

// attempt runs fn once under the per-attempt deadline, aborting early
// if the executor goes offline.
func (e *Executor) attempt(ctx context.Context, fn func(context.Context) error, policy Policy) error {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if policy.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		attemptCtx, timeoutCancel = context.WithTimeout(attemptCtx, policy.Timeout)
		defer timeoutCancel()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-e.offlineSignal():
			cancel()
		case <-stop:
		}
	}()

	err := fn(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		// The attempt deadline fired (not the caller's context);
		// make sure classification sees a timeout even if fn wrapped
		// or replaced the context error.
		return context.DeadlineExceeded
	}
	return err
}

// Do is the generic form of Execute for operations that produce a
// value. The zero value of T is returned alongside a non-nil error.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), policy Policy) (T, error) {
	var result T
	err := e.Execute(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, policy)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
