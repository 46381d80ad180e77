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

package ring

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Free is reported by [Fork.Holder] when nobody holds the fork.
const Free = -1

// A Fork is one exclusive, reusable resource. The semaphore provides
// the blocking behavior; the holder field records who is past it so
// that mutual exclusion can be observed and enforced.
type Fork struct {
	index  int
	sem    *semaphore.Weighted
	holder atomic.Int64
}

func newFork(index int) *Fork {
	f := &Fork{
		index: index,
		sem:   semaphore.NewWeighted(1),
	}
	f.holder.Store(Free)
	return f
}

// Index returns the fork's position in the ring.
func (f *Fork) Index() int { return f.index }

// Acquire blocks until the fork is free, then marks it as held by the
// diner. If ctx is canceled first, the fork is untouched and the
// context's error is returned.
func (f *Fork) Acquire(ctx context.Context, diner int) error {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	f.markHeld(diner)
	return nil
}

// TryAcquire takes the fork without blocking. It returns false if the
// fork is held.
func (f *Fork) TryAcquire(diner int) bool {
	if !f.sem.TryAcquire(1) {
		return false
	}
	f.markHeld(diner)
	return true
}

// Release frees the fork and wakes at most one waiter. It panics if
// the fork is not held by the diner.
func (f *Fork) Release(diner int) {
	if !f.holder.CompareAndSwap(int64(diner), Free) {
		panic(fmt.Sprintf("fork %d released by diner %d but held by %d",
			f.index, diner, f.holder.Load()))
	}
	f.sem.Release(1)
}

// Holder returns the index of the diner holding the fork, or [Free].
func (f *Fork) Holder() int {
	return int(f.holder.Load())
}

func (f *Fork) markHeld(diner int) {
	// The semaphore admits one holder at a time, so the swap can only
	// fail if the invariant has already been broken.
	if !f.holder.CompareAndSwap(Free, int64(diner)) {
		panic(fmt.Sprintf("fork %d acquired by diner %d while held by %d",
			f.index, diner, f.holder.Load()))
	}
}
