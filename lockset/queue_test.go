// Copyright 2024 The Cockroach Authors
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

package lockset

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Ensure serial ordering based on key.
func TestSerial(t *testing.T) {
	const numTickets = 1024
	r := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := NewQueue[struct{}]()
	tickets := make([]*Ticket[struct{}], numTickets)
	for i := range tickets {
		tickets[i] = q.Enqueue([]struct{}{{}})
	}
	r.True(tickets[0].Granted())
	r.False(tickets[1].Granted())
	r.True(q.IsHead(tickets[0]))

	// We want to verify that we see execution order for a key match the
	// issue order.
	var resource atomic.Int32
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range tickets {
		i := i
		eg.Go(func() error {
			if err := q.Wait(egCtx, tickets[i]); err != nil {
				return err
			}
			current := resource.Add(1) - 1
			q.Dequeue(tickets[i])
			if i != int(current) {
				return errors.New("out of order execution")
			}
			return nil
		})
	}
	r.NoError(eg.Wait())
	r.True(q.IsEmpty())
	r.Equal(numTickets, q.Issued())
}

// Use random key sets to ensure that we don't see any collisions on the
// underlying resources and that grants occur in the expected order.
func TestSmoke(t *testing.T) {
	const numResources = 128
	const numTickets = 10 * numResources
	r := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := NewQueue[int]()

	// The checker will toggle the values between 0 and a nonce value to
	// look for collisions.
	resources := make([]atomic.Int64, numResources)
	executionOrder := make([][]int, numResources)
	var executionMu sync.Mutex
	checker := func(keys []int, ticket int) error {
		executionMu.Lock()
		for _, k := range keys {
			executionOrder[k] = append(executionOrder[k], ticket)
		}
		executionMu.Unlock()

		fail := false
		nonce := rand.Int63n(math.MaxInt64-1) + 1
		for _, k := range keys {
			if !resources[k].CompareAndSwap(0, nonce) {
				fail = true
			}
		}
		// Create goroutine scheduling jitter.
		runtime.Gosched()
		for _, k := range keys {
			if !resources[k].CompareAndSwap(nonce, 0) {
				fail = true
			}
		}
		if fail {
			return errors.New("collision detected")
		}
		return nil
	}

	// Issue every ticket up front, intentionally including duplicate
	// key values, and record the order we expect per key.
	expectedOrder := make([][]int, numResources)
	tickets := make([]*Ticket[int], numTickets)
	for i := range tickets {
		count := rand.Intn(numResources) + 1
		keys := make([]int, count)
		for idx := range keys {
			keys[idx] = rand.Intn(numResources)
		}
		tickets[i] = q.Enqueue(keys)
		for _, key := range dedup(keys) {
			expectedOrder[key] = append(expectedOrder[key], i)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range tickets {
		i := i
		eg.Go(func() error {
			if err := q.Wait(egCtx, tickets[i]); err != nil {
				return err
			}
			defer q.Dequeue(tickets[i])
			return checker(tickets[i].Keys(), i)
		})
	}
	r.NoError(eg.Wait())

	for i := 0; i < numResources; i++ {
		r.Equalf(expectedOrder[i], executionOrder[i], "key %d", i)
	}
	r.True(q.IsEmpty())
}

func TestEmptyKeys(t *testing.T) {
	r := require.New(t)
	q := NewQueue[int]()

	blocker := q.Enqueue([]int{0})
	empty := q.Enqueue(nil)
	r.True(blocker.Granted())
	r.True(empty.Granted())
	r.True(q.Dequeue(empty))
	r.True(q.Dequeue(blocker))
	r.True(q.IsEmpty())
}

func TestAbandon(t *testing.T) {
	r := require.New(t)
	q := NewQueue[int]()

	blocker := q.Enqueue([]int{0})
	abandoned := q.Enqueue([]int{0, 1})
	behind := q.Enqueue([]int{1})
	r.False(abandoned.Granted())
	r.False(behind.Granted())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Wait(ctx, abandoned)
	r.ErrorIs(err, ErrTicketCanceled)
	r.ErrorIs(err, context.Canceled)

	// Abandoning a ticket at the head of key 1 promotes the next one.
	r.True(behind.Granted())
	r.False(q.Dequeue(abandoned)) // Duplicate dequeue is a no-op.

	r.True(q.Dequeue(behind))
	r.True(q.Dequeue(blocker))
	r.False(q.IsQueuedKey(0))
	r.True(q.IsEmpty())
}

func TestDedup(t *testing.T) {
	r := require.New(t)

	src := []int{0, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 0}
	cpy := append([]int(nil), src...)
	expected := []int{0, 5, 4, 3, 2, 1}

	r.Equal(expected, dedup(src))
	// Ensure that the source was not modified.
	r.Equal(src, cpy)
}

func TestPhilosophers(t *testing.T) {
	r := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := NewQueue[string]()

	// The usual dining-philosophers constraints: five actors, five
	// "forks" labeled a-e, all asking at once.
	forks := [][]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "e"}, {"e", "a"}}
	tickets := make([]*Ticket[string], len(forks))
	for i, f := range forks {
		tickets[i] = q.Enqueue(f)
	}

	var log []string
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range tickets {
		i := i
		eg.Go(func() error {
			if err := q.Wait(egCtx, tickets[i]); err != nil {
				return err
			}
			mu.Lock()
			log = append(log, tickets[i].Keys()...)
			mu.Unlock()
			q.Dequeue(tickets[i])
			return nil
		})
	}
	r.NoError(eg.Wait())
	r.Len(log, 10)
	r.True(q.IsEmpty())
}
