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

package diner

import (
	"context"
	"sync/atomic"
)

// A Barrier is a one-shot rendezvous. Diners arrive at it after taking
// their first resource in their first cycle, which lines every diner
// up on its second resource at the same moment.
type Barrier struct {
	parties   int
	remaining atomic.Int64
	done      chan struct{}
}

// NewBarrier constructs a Barrier that opens once parties callers have
// arrived. A non-positive count produces a Barrier that is already
// open.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{
		parties: parties,
		done:    make(chan struct{}),
	}
	b.remaining.Store(int64(parties))
	if parties <= 0 {
		close(b.done)
	}
	return b
}

// Parties returns the number of arrivals needed to open the barrier.
func (b *Barrier) Parties() int { return b.parties }

// Arrive registers the caller and blocks until the barrier opens or
// ctx is canceled.
func (b *Barrier) Arrive(ctx context.Context) error {
	if b.remaining.Add(-1) == 0 {
		close(b.done)
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Open returns true once enough callers have arrived.
func (b *Barrier) Open() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
