// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backoff

import (
	"testing"
	"time"
)

// TestConstantJitterBounds verifies GetDelay stays within delay*(1±jitter).
func TestConstantJitterBounds(t *testing.T) {
	c := NewConstant(100*time.Millisecond, 0.5)
	lo := 50 * time.Millisecond
	hi := 150 * time.Millisecond
	for range 200 {
		d := c.GetDelay()
		if d < lo || d > hi {
			t.Fatalf("GetDelay() = %v, want in [%v, %v]", d, lo, hi)
		}
	}
}

// TestConstantNextIsImmutable verifies Next never mutates the receiver
// and returns an equivalent, independently-resamplable strategy.
func TestConstantNextIsImmutable(t *testing.T) {
	c := NewConstant(10*time.Millisecond, 0)
	n := c.Next().(Constant)
	if n.Delay != c.Delay || n.Jitter != c.Jitter {
		t.Fatalf("Next() changed configuration: got %+v, want %+v", n, c)
	}
	if n.GetDelay() != c.Delay {
		t.Fatalf("GetDelay() after Next() = %v, want %v", n.GetDelay(), c.Delay)
	}
}

// TestExponentialMonotonicUntilMax verifies successive Next() calls without
// an intervening Reset() never produce a smaller expected delay, and that
// the delay saturates at Max.
func TestExponentialMonotonicUntilMax(t *testing.T) {
	e := NewExponential(10*time.Millisecond, 200*time.Millisecond, 0)
	var prev time.Duration
	var s Strategy = e
	for i := range 10 {
		d := s.GetDelay()
		if d < prev {
			t.Fatalf("attempt %d: delay %v < previous %v", i, d, prev)
		}
		prev = d
		s = s.Next()
	}
	if prev != 200*time.Millisecond {
		t.Fatalf("delay did not saturate at Max: got %v", prev)
	}
}

// TestExponentialReset verifies Reset() restores the delay to Initial.
func TestExponentialReset(t *testing.T) {
	e := NewExponential(5*time.Millisecond, 500*time.Millisecond, 0)
	var s Strategy = e
	for range 5 {
		s = s.Next()
	}
	s = s.Reset()
	if got := s.GetDelay(); got != 5*time.Millisecond {
		t.Errorf("GetDelay() after Reset() = %v, want %v", got, 5*time.Millisecond)
	}
}

// TestExponentialRandomOffsetNeverNegativeAttempt verifies that a large
// Random value never pushes the effective attempt below 0 (which would
// otherwise produce a delay smaller than Initial for attempt 0).
func TestExponentialRandomOffsetNeverNegativeAttempt(t *testing.T) {
	e := NewExponential(10*time.Millisecond, 1*time.Second, 50)
	for range 50 {
		if d := e.GetDelay(); d < 10*time.Millisecond {
			t.Fatalf("GetDelay() = %v, want >= Initial (%v)", d, 10*time.Millisecond)
		}
	}
}
