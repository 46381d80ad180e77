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
	"fmt"
	"sync"
)

// ErrTicketCanceled will be returned from [context.Cause] style checks
// when [Queue.Wait] gives up on a ticket.
var ErrTicketCanceled = fmt.Errorf("%w: lockset ticket abandoned", context.Canceled)

// A Ticket is a request for exclusive use of a set of keys. It is
// granted once it reaches the head of every key's queue.
type Ticket[K comparable] struct {
	keys  []K
	ready chan struct{} // Closed once granted.

	// The remaining fields are guarded by the parent Queue's lock.
	headCount int
	next      *Ticket[K]
	valid     bool
}

// Keys returns the deduplicated keys requested by the ticket.
func (t *Ticket[K]) Keys() []K { return t.keys }

// Ready returns a channel that is closed once the ticket is granted.
func (t *Ticket[K]) Ready() <-chan struct{} { return t.ready }

// Granted returns true if the ticket has been granted.
func (t *Ticket[K]) Granted() bool {
	select {
	case <-t.ready:
		return true
	default:
		return false
	}
}

// grant must be called with the Queue lock held.
func (t *Ticket[K]) grant() { close(t.ready) }

func (t *Ticket[K]) invalidate() {
	t.keys = nil
	t.valid = false
}

// A Queue grants tickets over potentially-overlapping key sets in the
// order in which they were issued. It also maintains a "global" queue
// of tickets, based on the order in which [Queue.Enqueue] is called.
//
// Deadlocks between tickets are avoided since the relative order of
// issued tickets is maintained. That is, if T1 is issued before T2,
// T1 will be ahead of T2 in all key queues that they have in common,
// so a ticket only ever waits on tickets that are older than itself.
//
// A Queue is internally synchronized and is safe for concurrent use. A
// Queue should not be copied after it has been created.
type Queue[K comparable] struct {
	mu struct {
		sync.Mutex

		// These tickets are used to maintain a global ordering.
		head *Ticket[K]
		tail *Ticket[K]

		queues map[K][]*Ticket[K]
		issued int
	}
}

// NewQueue constructs a [Queue].
func NewQueue[K comparable]() *Queue[K] {
	q := &Queue[K]{}
	q.mu.queues = make(map[K][]*Ticket[K])
	return q
}

// Enqueue issues a ticket for the keys. The ticket is granted
// immediately if no older ticket shares any of its keys; this is also
// the case for an empty key set.
func (q *Queue[K]) Enqueue(keys []K) *Ticket[K] {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := &Ticket[K]{
		keys:  dedup(keys),
		ready: make(chan struct{}),
		valid: true,
	}
	q.mu.issued++

	// Insert the ticket into the global queue.
	if q.mu.tail == nil {
		q.mu.head = t
	} else {
		q.mu.tail.next = t
	}
	q.mu.tail = t

	// Add the ticket to each key queue. If it's the only ticket for
	// that key, also increment its headCount.
	for _, k := range t.keys {
		entries := append(q.mu.queues[k], t)
		q.mu.queues[k] = entries
		if len(entries) == 1 {
			t.headCount++
		}
	}

	if t.headCount == len(t.keys) {
		t.grant()
	}
	return t
}

// Dequeue removes the ticket from the queue, granting any tickets that
// are now at the head of all of their key queues. A granted ticket
// must be dequeued once its holder is done with the keys; an ungranted
// ticket may be dequeued to abandon it. The return value indicates
// whether the ticket was in the queue.
func (q *Queue[K]) Dequeue(t *Ticket[K]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Already dequeued, so a no-op.
	if !t.valid {
		return false
	}

	// Remove the ticket from each key's queue.
	for _, k := range t.keys {
		entries := q.mu.queues[k]

		// Search for the ticket in the queue. It's always going to
		// be the first element in the slice, except in the
		// abandonment case.
		idx := -1
		for i := range entries {
			if entries[i] == t {
				idx = i
				break
			}
		}
		if idx < 0 {
			panic(fmt.Sprintf("ticket not found in queue for key %v", k))
		}

		if idx > 0 {
			// The (abandoned) ticket was in the middle of the queue,
			// just remove it from the slice.
			q.mu.queues[k] = append(entries[:idx], entries[idx+1:]...)
			continue
		}

		entries = entries[1:]
		if len(entries) == 0 {
			delete(q.mu.queues, k)
			continue
		}
		q.mu.queues[k] = entries

		// Promote the next ticket. If it's now at the head of all of
		// its queues, it can be granted.
		next := entries[0]
		next.headCount++
		switch {
		case next.headCount == len(next.keys):
			next.grant()
		case next.headCount > len(next.keys):
			panic("over counted")
		}
	}

	// Make eligible for cleanup and remove key references.
	t.invalidate()

	// Clean up the global queue.
	head := q.mu.head
	for head != nil && !head.valid {
		head = head.next
	}
	q.mu.head = head
	if q.mu.head == nil {
		q.mu.tail = nil
	}
	return true
}

// Wait blocks until the ticket is granted. If ctx is canceled first,
// the ticket is dequeued and an error wrapping [ErrTicketCanceled] is
// returned.
func (q *Queue[K]) Wait(ctx context.Context, t *Ticket[K]) error {
	select {
	case <-t.ready:
		return nil
	default:
	}
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		q.Dequeue(t)
		return fmt.Errorf("%w: %w", ErrTicketCanceled, context.Cause(ctx))
	}
}

// IsEmpty returns true if there are no tickets in the queue.
func (q *Queue[K]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mu.head == nil
}

// IsHead returns true if the ticket is at the head of the global queue.
func (q *Queue[K]) IsHead(t *Ticket[K]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mu.head == t
}

// IsQueuedKey returns true if the key is present in the queue.
func (q *Queue[K]) IsQueuedKey(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.mu.queues[key]) > 0
}

// Issued returns the number of tickets issued over the queue's
// lifetime.
func (q *Queue[K]) Issued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mu.issued
}

// Make a copy of the key slice and deduplicate it.
func dedup[K comparable](keys []K) []K {
	keys = append([]K(nil), keys...)
	seen := make(map[K]struct{}, len(keys))
	idx := 0
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		keys[idx] = key
		idx++
	}
	return keys[:idx]
}
