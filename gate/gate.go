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

// Package gate contains a bounded admission gate. Limiting the number
// of diners that may attempt to hold two forks to one fewer than the
// number of forks makes a circular wait impossible: at least one
// admitted diner always finds both of its forks reachable.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrCapacity is returned when a gate would admit nobody.
var ErrCapacity = errors.New("gate capacity must be at least one")

// A Gate is a counting permit pool.
//
// A Gate is internally synchronized and is safe for concurrent use. A
// Gate should not be copied after it has been created.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted

	inside atomic.Int64 // Permits currently handed out.
	peak   atomic.Int64 // High-water mark of inside.
}

// New constructs a Gate that admits at most capacity holders at once.
func New(capacity int) (*Gate, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrCapacity, capacity)
	}
	return &Gate{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}, nil
}

// ForRing constructs a Gate sized for a ring of n forks, admitting
// n-1 diners.
func ForRing(n int) (*Gate, error) {
	return New(n - 1)
}

// Capacity returns the maximum number of concurrent holders.
func (g *Gate) Capacity() int { return int(g.capacity) }

// Enter blocks until a permit is available. If ctx is canceled first,
// no permit is taken and the context's error is returned.
func (g *Gate) Enter(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.admitted()
	return nil
}

// TryEnter takes a permit without blocking. It returns false if the
// gate is full.
func (g *Gate) TryEnter() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.admitted()
	return true
}

// Leave returns a permit to the gate. It panics if no permit is
// outstanding.
func (g *Gate) Leave() {
	if g.inside.Add(-1) < 0 {
		panic("gate: Leave called without a matching Enter")
	}
	g.sem.Release(1)
}

// Inside returns the number of permits currently held.
func (g *Gate) Inside() int { return int(g.inside.Load()) }

// Peak returns the largest number of permits that were held at the
// same time.
func (g *Gate) Peak() int { return int(g.peak.Load()) }

func (g *Gate) admitted() {
	n := g.inside.Add(1)
	if n > g.capacity {
		panic(fmt.Sprintf("gate: %d holders exceed capacity %d", n, g.capacity))
	}
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}
