// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package backoff implements the two delay-sequence generators the
// connection pool uses to decide how long a failing host stays disabled.
//
// Both strategies are value-immutable: Next and Reset return a new
// Strategy rather than mutating the receiver, so a Host can hand its
// current strategy to a goroutine-safe "replace on transition" dance
// without needing its own lock around the backoff field.
package backoff

import (
	"math"
	"math/rand"
	"time"

	jpillora "github.com/jpillora/backoff"
)

// Strategy is an immutable delay-sequence generator.
type Strategy interface {
	// GetDelay returns the delay to wait before retrying, in the strategy's
	// current state. Calling it repeatedly without Next/Reset may return
	// different values when jitter is configured, but the expectation is
	// stable.
	GetDelay() time.Duration

	// Next returns the strategy advanced by one failure.
	Next() Strategy

	// Reset returns the strategy as it was before any failures.
	Reset() Strategy
}

// Constant is a backoff strategy with a fixed base delay perturbed by
// uniform jitter. It has no internal counter: Next and Reset both just
// return a copy of the same configuration, ready to be resampled by the
// next GetDelay call.
type Constant struct {
	Delay  time.Duration
	Jitter float64 // in [0, 1]
}

// NewConstant builds a Constant backoff. jitter is clamped to [0, 1].
func NewConstant(delay time.Duration, jitter float64) Constant {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return Constant{Delay: delay, Jitter: jitter}
}

func (c Constant) GetDelay() time.Duration {
	if c.Jitter == 0 {
		return c.Delay
	}
	// U(-jitter, +jitter)
	spread := (rand.Float64()*2 - 1) * c.Jitter
	return time.Duration(float64(c.Delay) * (1 + spread))
}

func (c Constant) Next() Strategy  { return c }
func (c Constant) Reset() Strategy { return c }

// Exponential is a backoff strategy whose delay doubles with every failed
// attempt, saturating at Max, with a randomized attempt offset so that
// concurrently-failing hosts don't all re-enable in lockstep.
//
// The doubling math is delegated to jpillora/backoff's ForAttempt, which
// already implements "Min * Factor^attempt, capped at Max" correctly
// (including the Factor==0 default of 2); Exponential only adds the
// value-immutable attempt counter and the random-attempt-offset jitter
// spec.md requires, neither of which jpillora/backoff's mutable Backoff
// type provides on its own.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Random  float64 // >= 0, max attempt offset subtracted before computing the delay

	n int // attempt counter, 0 on construction and after Reset
}

// NewExponential builds an Exponential backoff starting at attempt 0.
func NewExponential(initial, max time.Duration, random float64) Exponential {
	if random < 0 {
		random = 0
	}
	return Exponential{Initial: initial, Max: max, Random: random}
}

func (e Exponential) GetDelay() time.Duration {
	offset := 0
	if e.Random > 0 {
		offset = int(math.Round(rand.Float64() * e.Random))
	}
	attempt := e.n - offset
	if attempt < 0 {
		attempt = 0
	}

	b := &jpillora.Backoff{Min: e.Initial, Max: e.Max, Factor: 2}
	return b.ForAttempt(float64(attempt))
}

func (e Exponential) Next() Strategy {
	e.n++
	return e
}

func (e Exponential) Reset() Strategy {
	e.n = 0
	return e
}
