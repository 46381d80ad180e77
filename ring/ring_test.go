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
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNew(t *testing.T) {
	r := require.New(t)

	_, err := New(1)
	r.ErrorIs(err, ErrSize)

	ring, err := New(5)
	r.NoError(err)
	r.Equal(5, ring.Len())
	r.Equal([]int{Free, Free, Free, Free, Free}, ring.Holders())
	r.Zero(ring.Held())
}

func TestPair(t *testing.T) {
	tests := []struct {
		n, diner  int
		low, high int
	}{
		{2, 0, 0, 1},
		{2, 1, 1, 0},
		{5, 0, 0, 1},
		{5, 3, 3, 4},
		{5, 4, 4, 0},
	}
	for _, tt := range tests {
		ring, err := New(tt.n)
		require.NoError(t, err)
		low, high := ring.Pair(tt.diner)
		require.Equal(t, tt.low, low, "n=%d diner=%d", tt.n, tt.diner)
		require.Equal(t, tt.high, high, "n=%d diner=%d", tt.n, tt.diner)
	}
}

func TestIndex(t *testing.T) {
	r := require.New(t)
	ring, err := New(3)
	r.NoError(err)

	r.ErrorIs(ring.Acquire(context.Background(), 3, 0), ErrIndex)
	r.ErrorIs(ring.Acquire(context.Background(), -1, 0), ErrIndex)
	r.ErrorIs(ring.Release(7, 0), ErrIndex)
}

func TestAcquireRelease(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	ring, err := New(3)
	r.NoError(err)

	r.NoError(ring.Acquire(ctx, 1, 0))
	f, err := ring.Fork(1)
	r.NoError(err)
	r.Equal(0, f.Holder())
	r.Equal(1, ring.Held())
	r.False(f.TryAcquire(2))

	r.Panics(func() { f.Release(2) })
	r.NoError(ring.Release(1, 0))
	r.Equal(Free, f.Holder())

	r.True(f.TryAcquire(2))
	r.Equal(2, f.Holder())
	f.Release(2)
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	r := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ring, err := New(2)
	r.NoError(err)

	r.NoError(ring.Acquire(ctx, 0, 0))

	acquired := make(chan error, 1)
	go func() { acquired <- ring.Acquire(ctx, 0, 1) }()

	select {
	case <-acquired:
		r.Fail("acquired a held fork")
	case <-time.After(50 * time.Millisecond):
	}

	r.NoError(ring.Release(0, 0))
	r.NoError(<-acquired)
	f, _ := ring.Fork(0)
	r.Equal(1, f.Holder())
}

func TestAcquireCanceled(t *testing.T) {
	r := require.New(t)
	ring, err := New(2)
	r.NoError(err)
	r.NoError(ring.Acquire(context.Background(), 1, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.ErrorIs(ring.Acquire(ctx, 1, 1), context.DeadlineExceeded)

	// The canceled waiter must not have disturbed the holder.
	f, _ := ring.Fork(1)
	r.Equal(0, f.Holder())
}

// Hammer a small ring and look for two holders inside the critical
// section of the same fork.
func TestMutualExclusion(t *testing.T) {
	const numDiners = 16
	const numRounds = 200
	r := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ring, err := New(3)
	r.NoError(err)
	inside := make([]atomic.Int32, ring.Len())

	eg, egCtx := errgroup.WithContext(ctx)
	for d := 0; d < numDiners; d++ {
		eg.Go(func() error {
			for i := 0; i < numRounds; i++ {
				idx := (d + i) % ring.Len()
				if err := ring.Acquire(egCtx, idx, d); err != nil {
					return err
				}
				if n := inside[idx].Add(1); n != 1 {
					t.Errorf("fork %d has %d holders", idx, n)
				}
				runtime.Gosched()
				inside[idx].Add(-1)
				if err := ring.Release(idx, d); err != nil {
					return err
				}
			}
			return nil
		})
	}
	r.NoError(eg.Wait())
	r.Zero(ring.Held())
}
