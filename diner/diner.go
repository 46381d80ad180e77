// Copyright 2025 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package diner contains the concurrent agents of the simulation. A
// Diner repeatedly thinks, acquires the two forks adjacent to its seat
// using one of the [Protocol] variants, eats and releases them.
//
// Diners run in one of two modes. By default every acquisition blocks
// without regard for cancellation and the stop flag is only consulted
// between cycles, so a diner caught in a circular wait stays there
// forever. With [Options.Cancellable] set, every wait is bounded by the
// context passed to [Diner.Run] and a stopping diner gives back what
// it holds.
package diner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/field-eng-diners/lockset"
	"github.com/cockroachdb/field-eng-diners/retry"
	"github.com/cockroachdb/field-eng-diners/ring"
)

// DefaultAttemptTimeout bounds a single acquisition attempt in
// cancellable mode.
const DefaultAttemptTimeout = 50 * time.Millisecond

// Options configure a [Diner].
type Options struct {
	Protocol Protocol
	Timing   Timing

	// Cancellable makes every wait honor the run context.
	Cancellable bool
	// AttemptTimeout bounds each timed acquisition attempt when
	// Cancellable is set. Zero selects DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// Barrier, if non-nil, is visited once, after the first resource
	// of the first cycle has been acquired.
	Barrier *Barrier
	Events  *Events

	// Seed feeds the diner's private random source together with its
	// index.
	Seed uint64
}

// A Diner is one agent at the table. Its methods other than [Diner.ID]
// must only be called from the goroutine executing [Diner.Run].
type Diner struct {
	id       int
	opts     Options
	table    *Table
	low      *ring.Fork
	high     *ring.Fork
	rng      *rand.Rand
	attempts time.Duration

	state  State
	met    bool // Barrier visited.
	holds  struct{ low, high, permit bool }
	ticket *lockset.Ticket[int]
}

// New constructs the diner seated at index id.
func New(id int, table *Table, opts Options) (*Diner, error) {
	if err := table.check(opts.Protocol); err != nil {
		return nil, err
	}
	if err := opts.Timing.Validate(); err != nil {
		return nil, err
	}
	if id < 0 || id >= table.Ring.Len() {
		return nil, fmt.Errorf("%w: diner %d", ring.ErrIndex, id)
	}
	lowIdx, highIdx := table.Ring.Pair(id)
	low, err := table.Ring.Fork(lowIdx)
	if err != nil {
		return nil, err
	}
	high, err := table.Ring.Fork(highIdx)
	if err != nil {
		return nil, err
	}
	attempts := opts.AttemptTimeout
	if attempts <= 0 {
		attempts = DefaultAttemptTimeout
	}
	return &Diner{
		id:       id,
		opts:     opts,
		table:    table,
		low:      low,
		high:     high,
		rng:      rand.New(rand.NewPCG(opts.Seed, uint64(id))),
		attempts: attempts,
		state:    Thinking,
	}, nil
}

// ID returns the diner's seat index.
func (d *Diner) ID() int { return d.id }

// State returns the diner's current state.
func (d *Diner) State() State { return d.state }

// Run executes think, acquire, eat, release cycles until the stop flag
// is observed at the end of a thinking period. In cancellable mode Run
// also returns once ctx is canceled, after releasing everything the
// diner holds; that is a clean exit and reports a nil error.
func (d *Diner) Run(ctx context.Context, stop *atomic.Bool) error {
	for {
		d.setState(Thinking)
		if err := d.pause(ctx, d.opts.Timing.think(d.rng)); err != nil {
			return d.terminate(ctx, err)
		}
		if stop.Load() {
			return d.terminate(ctx, nil)
		}

		if err := d.acquire(ctx); err != nil {
			d.setState(Releasing)
			d.release()
			return d.terminate(ctx, err)
		}

		d.setState(Eating)
		err := d.pause(ctx, d.opts.Timing.eat(d.rng))
		d.setState(Releasing)
		d.release()
		if err != nil {
			return d.terminate(ctx, err)
		}
	}
}

// acquire takes everything the protocol needs before eating.
func (d *Diner) acquire(ctx context.Context) error {
	d.setState(AcquiringFirst)
	switch d.opts.Protocol {
	case Gated:
		if err := d.block(ctx, ResourcePermit, d.table.Gate.Enter); err != nil {
			return err
		}
		d.holds.permit = true

	case Ordered:
		start := time.Now()
		t := d.table.Queue.Enqueue([]int{d.low.Index(), d.high.Index()})
		if err := d.table.Queue.Wait(d.waitContext(ctx), t); err != nil {
			return err
		}
		d.ticket = t
		d.opts.Events.doWait(d.id, ResourceTicket, time.Since(start))
	}

	if err := d.takeFork(ctx, d.low); err != nil {
		return err
	}
	d.holds.low = true

	if d.opts.Barrier != nil && !d.met {
		d.met = true
		if err := d.opts.Barrier.Arrive(d.waitContext(ctx)); err != nil {
			return err
		}
	}

	d.setState(AcquiringSecond)
	if err := d.takeFork(ctx, d.high); err != nil {
		return err
	}
	d.holds.high = true
	return nil
}

// release gives back whatever is held: forks first, then the permit or
// ticket that admitted the diner.
func (d *Diner) release() {
	if d.holds.high {
		d.high.Release(d.id)
		d.holds.high = false
	}
	if d.holds.low {
		d.low.Release(d.id)
		d.holds.low = false
	}
	if d.holds.permit {
		d.table.Gate.Leave()
		d.holds.permit = false
	}
	if d.ticket != nil {
		d.table.Queue.Dequeue(d.ticket)
		d.ticket = nil
	}
}

func (d *Diner) takeFork(ctx context.Context, f *ring.Fork) error {
	return d.block(ctx, ResourceFork, func(ctx context.Context) error {
		return f.Acquire(ctx, d.id)
	})
}

// block waits on a resource. In cancellable mode the wait is a series
// of timed attempts separated by a jittered backoff, which ends as
// soon as ctx is canceled.
func (d *Diner) block(
	ctx context.Context, what Resource, acquire func(context.Context) error,
) error {
	start := time.Now()
	if !d.opts.Cancellable {
		if err := acquire(context.Background()); err != nil {
			return err
		}
		d.opts.Events.doWait(d.id, what, time.Since(start))
		return nil
	}

	backoff, err := d.backoff()
	if err != nil {
		return err
	}
	err = retry.Retry(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.attempts)
		defer cancel()
		err := acquire(attemptCtx)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: diner %d waiting for %s", retry.ErrRetriable, d.id, what)
		}
		return err
	})
	if err != nil {
		return err
	}
	d.opts.Events.doWait(d.id, what, time.Since(start))
	return nil
}

func (d *Diner) backoff() (retry.Backoff, error) {
	exp, err := retry.NewExpBackoff(time.Millisecond, d.attempts, 0)
	if err != nil {
		return nil, err
	}
	return retry.WithJitter(exp, 0.5, d.rng)
}

// waitContext returns the context that bounds channel waits.
func (d *Diner) waitContext(ctx context.Context) context.Context {
	if d.opts.Cancellable {
		return ctx
	}
	return context.Background()
}

// pause sleeps for the duration, waking early only in cancellable mode.
func (d *Diner) pause(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	if !d.opts.Cancellable {
		time.Sleep(dur)
		return nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// setState records a state change in the ledger and notifies
// observers. Entering Eating counts a meal.
func (d *Diner) setState(to State) {
	from := d.state
	if from == to {
		return
	}
	d.state = to

	var meals uint64
	switch {
	case to == Eating:
		meals = d.table.Ledger.BeginMeal(d.id, to)
	case from == Eating:
		d.table.Ledger.EndMeal(d.id, to)
	default:
		d.table.Ledger.SetState(d.id, to)
	}
	d.opts.Events.doTransition(d.id, from, to)
	if to == Eating {
		d.opts.Events.doMeal(d.id, meals)
	}
}

// terminate moves the diner to its final state. Errors caused by the
// run context ending are a normal shutdown and are not reported.
func (d *Diner) terminate(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		err = nil
	}
	d.setState(Terminated)
	d.opts.Events.doTerminate(d.id, err)
	return err
}
