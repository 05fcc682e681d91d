// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
)

// Kind classifies a failure for retry decisions. Retry policy is
// expressed in kinds, not concrete errors, so callers can mark their
// own errors without the executor knowing about them.
type Kind uint8

const (
	// KindOther is everything the classifier cannot place. Never
	// retried by the default policy.
	KindOther Kind = iota

	// KindConnectivity is a lost or refused network connection.
	KindConnectivity

	// KindTimeout is an attempt that ran out of time.
	KindTimeout

	// KindServerFault is a remote-side failure (5xx and kin).
	KindServerFault

	// KindNotFound is a missing resource. Retrying will not make it
	// appear.
	KindNotFound
)

// String returns the kind's identifier.
func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindTimeout:
		return "timeout"
	case KindServerFault:
		return "server_fault"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Describe returns the user-facing description of the kind.
func (k Kind) Describe() string {
	switch k {
	case KindConnectivity:
		return "offline"
	case KindTimeout:
		return "timed out"
	case KindServerFault:
		return "server problem"
	case KindNotFound:
		return "not found"
	default:
		return "failed"
	}
}

// ErrConnectivityLost is the sentinel for a lost connection, raised by
// the executor's global offline signal and usable by callers to mark
// their own connectivity failures.
var ErrConnectivityLost = errors.New("retry: connectivity lost")

// kinder lets an error carry its own classification.
type kinder interface {
	RetryKind() Kind
}

// WithKind wraps err so Classify reports the given kind.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kindedError{err: err, kind: kind}
}

type kindedError struct {
	err  error
	kind Kind
}

func (e *kindedError) Error() string   { return e.err.Error() }
func (e *kindedError) Unwrap() error   { return e.err }
func (e *kindedError) RetryKind() Kind { return e.kind }

// Classify determines the failure kind of err. Explicit markings (via
// WithKind or a RetryKind method) win; otherwise common stdlib error
// shapes are recognized; everything else is KindOther.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var k kinder
	if errors.As(err, &k) {
		return k.RetryKind()
	}

	switch {
	case errors.Is(err, ErrConnectivityLost):
		return KindConnectivity
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnectivity
	}

	return KindOther
}

// KindFromHTTPStatus maps an HTTP status code to a failure kind.
func KindFromHTTPStatus(status int) Kind {
	switch {
	case status == 404 || status == 410:
		return KindNotFound
	case status == 408 || status == 504:
		return KindTimeout
	case status >= 500:
		return KindServerFault
	default:
		return KindOther
	}
}

// ClassifiedError is the executor's terminal error: the last attempt's
// error plus its classification and attempt accounting.
type ClassifiedError struct {
	// Op is the operation identifier passed to Execute.
	Op string

	// Kind is the classification of the final error.
	Kind Kind

	// Attempts is how many times the operation ran.
	Attempts int

	// Exhausted is true when the error was retryable but the retry
	// budget ran out.
	Exhausted bool

	// Err is the final attempt's error.
	Err error
}

// Error renders a human-readable description that distinguishes
// offline, timed out, and server problems.
func (e *ClassifiedError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: %s after %d attempts: %v", e.Op, e.Kind.Describe(), e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Describe(), e.Err)
}

// Unwrap returns the final attempt's error.
func (e *ClassifiedError) Unwrap() error { return e.Err }
