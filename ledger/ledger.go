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

// Package ledger records what every diner is doing and how many meals
// each has eaten. All reads and writes go through a single lock that
// is never held across a blocking call.
package ledger

import (
	"fmt"
	"sync"
)

type row[S any] struct {
	eating bool
	meals  uint64
	state  S
}

// A Ledger is the shared observability state for n diners. The type
// parameter is the diner's state representation.
//
// A Ledger is internally synchronized and is safe for concurrent use.
// A Ledger should not be copied after it has been created.
type Ledger[S any] struct {
	mu struct {
		sync.Mutex
		rows []row[S]
	}
}

// New constructs a Ledger with n rows, each starting in the initial
// state with no meals.
func New[S any](n int, initial S) *Ledger[S] {
	l := &Ledger[S]{}
	l.mu.rows = make([]row[S], n)
	for i := range l.mu.rows {
		l.mu.rows[i].state = initial
	}
	return l
}

// Len returns the number of diners tracked.
func (l *Ledger[S]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.mu.rows)
}

// SetState records a state change for the diner.
func (l *Ledger[S]) SetState(diner int, state S) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.row(diner).state = state
}

// BeginMeal marks the diner as eating, counts the meal and records the
// state. It returns the diner's new meal count.
func (l *Ledger[S]) BeginMeal(diner int, state S) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.row(diner)
	r.eating = true
	r.meals++
	r.state = state
	return r.meals
}

// EndMeal clears the diner's eating flag and records the state.
func (l *Ledger[S]) EndMeal(diner int, state S) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.row(diner)
	r.eating = false
	r.state = state
}

// Meals returns the diner's cumulative meal count.
func (l *Ledger[S]) Meals(diner int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.row(diner).meals
}

// Snapshot returns a consistent copy of every row.
func (l *Ledger[S]) Snapshot() Snapshot[S] {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Snapshot[S]{
		Meals:  make([]uint64, len(l.mu.rows)),
		States: make([]S, len(l.mu.rows)),
	}
	for i, r := range l.mu.rows {
		if r.eating {
			s.Eating = append(s.Eating, i)
		}
		s.Meals[i] = r.meals
		s.States[i] = r.state
	}
	return s
}

// row must be called with the lock held.
func (l *Ledger[S]) row(diner int) *row[S] {
	if diner < 0 || diner >= len(l.mu.rows) {
		panic(fmt.Sprintf("ledger: diner %d out of range [0, %d)", diner, len(l.mu.rows)))
	}
	return &l.mu.rows[diner]
}

// Snapshot is a point-in-time copy of a [Ledger].
type Snapshot[S any] struct {
	Eating []int    // Indexes of diners that are eating, ascending.
	Meals  []uint64 // Cumulative meals per diner.
	States []S      // Current state per diner.
}

// Total returns the sum of all meal counts.
func (s Snapshot[S]) Total() uint64 {
	var total uint64
	for _, m := range s.Meals {
		total += m
	}
	return total
}

// Every returns true if every diner's state satisfies fn. It returns
// false for an empty snapshot.
func (s Snapshot[S]) Every(fn func(S) bool) bool {
	if len(s.States) == 0 {
		return false
	}
	for _, st := range s.States {
		if !fn(st) {
			return false
		}
	}
	return true
}

// Spread returns the difference between the largest and smallest meal
// counts.
func (s Snapshot[S]) Spread() uint64 {
	if len(s.Meals) == 0 {
		return 0
	}
	lo, hi := s.Meals[0], s.Meals[0]
	for _, m := range s.Meals[1:] {
		lo = min(lo, m)
		hi = max(hi, m)
	}
	return hi - lo
}
