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

// Package ring contains the exclusive resources that diners contend
// for. A Ring of N forks is laid out so that diner i needs forks i and
// (i+1) mod N.
package ring

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIndex is returned when a fork index lies outside the ring.
	ErrIndex = errors.New("fork index out of range")
	// ErrSize is returned by [New] for rings that cannot seat two
	// diners.
	ErrSize = errors.New("a ring needs at least two forks")
)

// Ring is a fixed-size, circular arrangement of forks.
//
// A Ring is internally synchronized and is safe for concurrent use. A
// Ring should not be copied after it has been created.
type Ring struct {
	forks []*Fork
}

// New constructs a Ring of n free forks.
func New(n int) (*Ring, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrSize, n)
	}
	r := &Ring{forks: make([]*Fork, n)}
	for i := range r.forks {
		r.forks[i] = newFork(i)
	}
	return r, nil
}

// Len returns the number of forks in the ring.
func (r *Ring) Len() int { return len(r.forks) }

// Fork returns the fork at index i.
func (r *Ring) Fork(i int) (*Fork, error) {
	if i < 0 || i >= len(r.forks) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(r.forks))
	}
	return r.forks[i], nil
}

// Pair returns the low and high fork indexes that the given diner
// needs in order to eat. The low fork shares the diner's index.
func (r *Ring) Pair(diner int) (low, high int) {
	return diner, (diner + 1) % len(r.forks)
}

// Acquire blocks until the fork at index is free and marks it as held
// by the diner. The wait is abandoned if ctx is canceled; callers that
// must never give up should pass a context that is never canceled.
func (r *Ring) Acquire(ctx context.Context, index, diner int) error {
	f, err := r.Fork(index)
	if err != nil {
		return err
	}
	return f.Acquire(ctx, diner)
}

// Release frees the fork at index, which must be held by the diner.
func (r *Ring) Release(index, diner int) error {
	f, err := r.Fork(index)
	if err != nil {
		return err
	}
	f.Release(diner)
	return nil
}

// Holders returns the holder of each fork, with [Free] for forks that
// are not held. The values are sampled one fork at a time, so the
// result is not an atomic view of the whole ring.
func (r *Ring) Holders() []int {
	ret := make([]int, len(r.forks))
	for i, f := range r.forks {
		ret[i] = f.Holder()
	}
	return ret
}

// Held returns the number of forks that are currently held.
func (r *Ring) Held() int {
	count := 0
	for _, f := range r.forks {
		if f.Holder() != Free {
			count++
		}
	}
	return count
}
