// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "net: fake failure" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"plain", errors.New("boom"), KindOther},
		{"marked server fault", WithKind(errors.New("boom"), KindServerFault), KindServerFault},
		{"marked wrapped deeper", fmt.Errorf("outer: %w", WithKind(errors.New("boom"), KindNotFound)), KindNotFound},
		{"connectivity sentinel", ErrConnectivityLost, KindConnectivity},
		{"wrapped connectivity sentinel", fmt.Errorf("sync: %w", ErrConnectivityLost), KindConnectivity},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), KindTimeout},
		{"not exist", fs.ErrNotExist, KindNotFound},
		{"net timeout", &fakeNetError{timeout: true}, KindTimeout},
		{"net non-timeout", &fakeNetError{timeout: false}, KindConnectivity},
		{"context canceled", context.Canceled, KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithKindNil(t *testing.T) {
	if WithKind(nil, KindServerFault) != nil {
		t.Fatal("WithKind(nil) != nil")
	}
}

func TestWithKindPreservesChain(t *testing.T) {
	base := errors.New("underlying")
	err := WithKind(fmt.Errorf("wrapped: %w", base), KindTimeout)
	if !errors.Is(err, base) {
		t.Fatal("kinded error broke the unwrap chain")
	}
	if err.Error() != "wrapped: underlying" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestKindFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{200, KindOther},
		{400, KindOther},
		{404, KindNotFound},
		{408, KindTimeout},
		{410, KindNotFound},
		{500, KindServerFault},
		{503, KindServerFault},
		{504, KindTimeout},
	}
	for _, tt := range tests {
		if got := KindFromHTTPStatus(tt.status); got != tt.want {
			t.Errorf("KindFromHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind     Kind
		str      string
		describe string
	}{
		{KindOther, "other", "failed"},
		{KindConnectivity, "connectivity", "offline"},
		{KindTimeout, "timeout", "timed out"},
		{KindServerFault, "server_fault", "server problem"},
		{KindNotFound, "not_found", "not found"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.str {
			t.Errorf("%v.String() = %q, want %q", tt.kind, got, tt.str)
		}
		if got := tt.kind.Describe(); got != tt.describe {
			t.Errorf("%v.Describe() = %q, want %q", tt.kind, got, tt.describe)
		}
	}
}

func TestClassifiedErrorRendering(t *testing.T) {
	base := errors.New("connection refused")
	err := &ClassifiedError{Op: "fetch", Kind: KindConnectivity, Attempts: 3, Exhausted: true, Err: base}
	want := "fetch: offline after 3 attempts: connection refused"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, base) {
		t.Fatal("ClassifiedError broke the unwrap chain")
	}

	direct := &ClassifiedError{Op: "fetch", Kind: KindNotFound, Attempts: 1, Err: base}
	if direct.Error() != "fetch: not found: connection refused" {
		t.Fatalf("Error() = %q", direct.Error())
	}
}
