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

import "time"

// Events provides diners with optional callbacks to observe their
// progress. Callbacks run synchronously on the diner's goroutine, so
// a callback that blocks holds the diner in place.
type Events struct {
	OnMeal       func(diner int, meals uint64)
	OnTerminate  func(diner int, err error)
	OnTransition func(diner int, from, to State)
	OnWait       func(diner int, what Resource, waited time.Duration)
}

// Join returns Events that invoke each of the given callbacks in turn.
// Nil entries are skipped.
func Join(events ...*Events) *Events {
	var live []*Events
	for _, e := range events {
		if e != nil {
			live = append(live, e)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return &Events{
		OnMeal: func(diner int, meals uint64) {
			for _, e := range live {
				e.doMeal(diner, meals)
			}
		},
		OnTerminate: func(diner int, err error) {
			for _, e := range live {
				e.doTerminate(diner, err)
			}
		},
		OnTransition: func(diner int, from, to State) {
			for _, e := range live {
				e.doTransition(diner, from, to)
			}
		},
		OnWait: func(diner int, what Resource, waited time.Duration) {
			for _, e := range live {
				e.doWait(diner, what, waited)
			}
		},
	}
}

func (e *Events) doMeal(diner int, meals uint64) {
	if e != nil && e.OnMeal != nil {
		e.OnMeal(diner, meals)
	}
}

func (e *Events) doTerminate(diner int, err error) {
	if e != nil && e.OnTerminate != nil {
		e.OnTerminate(diner, err)
	}
}

func (e *Events) doTransition(diner int, from, to State) {
	if e != nil && e.OnTransition != nil {
		e.OnTransition(diner, from, to)
	}
}

func (e *Events) doWait(diner int, what Resource, waited time.Duration) {
	if e != nil && e.OnWait != nil {
		e.OnWait(diner, what, waited)
	}
}
