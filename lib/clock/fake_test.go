// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	clk := Fake(time.Unix(1000, 0))
	ch := clk.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("timer fired before Advance")
	default:
	}

	clk.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	clk.Advance(time.Second)
	select {
	case fired := <-ch:
		want := time.Unix(1005, 0)
		if !fired.Equal(want) {
			t.Fatalf("fire time = %v, want %v", fired, want)
		}
	default:
		t.Fatal("timer did not fire after deadline passed")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	clk := Fake(time.Unix(1000, 0))
	select {
	case <-clk.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	clk := Fake(time.Unix(1000, 0))
	called := false
	timer := clk.AfterFunc(time.Second, func() { called = true })

	if !timer.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}
	clk.Advance(2 * time.Second)
	if called {
		t.Fatal("stopped AfterFunc callback ran")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
}

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	clk := Fake(time.Unix(1000, 0))
	var order []int
	clk.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clk.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	clk.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	clk.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeWaitersCount(t *testing.T) {
	clk := Fake(time.Unix(1000, 0))
	if clk.Waiters() != 0 {
		t.Fatalf("fresh clock has %d waiters", clk.Waiters())
	}
	clk.After(time.Second)
	clk.After(2 * time.Second)
	if clk.Waiters() != 2 {
		t.Fatalf("Waiters() = %d, want 2", clk.Waiters())
	}
	clk.Advance(time.Second)
	if clk.Waiters() != 1 {
		t.Fatalf("Waiters() after partial advance = %d, want 1", clk.Waiters())
	}
}

func TestFakeSleepReturnsAfterAdvance(t *testing.T) {
	clk := Fake(time.Unix(1000, 0))
	done := make(chan struct{})
	go func() {
		clk.Sleep(time.Second)
		close(done)
	}()

	if !clk.BlockUntilWaiters(1, 5*time.Second) {
		t.Fatal("sleeper never registered")
	}
	clk.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}
