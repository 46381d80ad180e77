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

/*
Package lockset contains utilities for ordering access to
potentially-overlapping resources.

The dining philosophers problem looks like this:

	q := NewQueue[int]()

	// Each diner needs two adjacent forks out of a ring of three.
	alice := q.Enqueue([]int{0, 1})
	bob := q.Enqueue([]int{1, 2})
	carol := q.Enqueue([]int{2, 0})

	// alice is granted immediately; bob and carol wait behind her.
	_ = q.Wait(ctx, bob)
	// ... eat, then hand the forks on.
	q.Dequeue(bob)

Keys are not mutexes, or even software objects per se, but are simply
identifiers for the resource being protected. A Ticket is granted once
every older ticket that shares one of its keys has been dequeued, so
the wait graph can never close into a cycle.
*/
package lockset
