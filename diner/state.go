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
	"errors"
	"fmt"
)

// ErrUnknownProtocol is returned by [ParseProtocol].
var ErrUnknownProtocol = errors.New("unknown protocol")

// State is the logical state of a diner.
type State int

// The diner cycle is Thinking, AcquiringFirst, AcquiringSecond,
// Eating, Releasing and back to Thinking. Terminated is final.
const (
	Thinking State = iota
	AcquiringFirst
	AcquiringSecond
	Eating
	Releasing
	Terminated
)

func (s State) String() string {
	switch s {
	case Thinking:
		return "thinking"
	case AcquiringFirst:
		return "acquiring-first"
	case AcquiringSecond:
		return "acquiring-second"
	case Eating:
		return "eating"
	case Releasing:
		return "releasing"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Waiting returns true for the states in which a diner may block on a
// resource.
func (s State) Waiting() bool {
	return s == AcquiringFirst || s == AcquiringSecond
}

// Protocol selects how a diner acquires its two forks.
type Protocol int

const (
	// Naive takes the low fork and then the high fork. Every diner
	// holding its low fork at once is a circular wait.
	Naive Protocol = iota + 1
	// Gated takes a permit from a gate of capacity N-1 before taking
	// the forks as Naive does, and returns it after both are released.
	Gated
	// Ordered waits for a ticket on both forks from an in-order
	// admission queue before taking them.
	Ordered
)

// Protocols lists every protocol in command-line order.
var Protocols = []Protocol{Naive, Gated, Ordered}

// ParseProtocol returns the protocol with the given name. Names are
// case-sensitive.
func ParseProtocol(name string) (Protocol, error) {
	for _, p := range Protocols {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
}

func (p Protocol) String() string {
	switch p {
	case Naive:
		return "naive"
	case Gated:
		return "gated"
	case Ordered:
		return "ordered"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// Resource names what a diner waited for.
type Resource string

// Resources a diner may block on.
const (
	ResourceFork   Resource = "fork"
	ResourcePermit Resource = "permit"
	ResourceTicket Resource = "ticket"
)
