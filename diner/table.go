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

	"github.com/cockroachdb/field-eng-diners/gate"
	"github.com/cockroachdb/field-eng-diners/ledger"
	"github.com/cockroachdb/field-eng-diners/lockset"
	"github.com/cockroachdb/field-eng-diners/ring"
)

// ErrTable is returned when a [Table] lacks what a protocol needs.
var ErrTable = errors.New("table is not set up for protocol")

// Table holds everything the diners share. Gate is only needed by the
// Gated protocol and Queue only by the Ordered protocol.
type Table struct {
	Ring   *ring.Ring
	Gate   *gate.Gate
	Queue  *lockset.Queue[int]
	Ledger *ledger.Ledger[State]
}

// NewTable sets a table for n diners using the protocol.
func NewTable(n int, p Protocol) (*Table, error) {
	r, err := ring.New(n)
	if err != nil {
		return nil, err
	}
	t := &Table{
		Ring:   r,
		Ledger: ledger.New(n, Thinking),
	}
	switch p {
	case Naive:
	case Gated:
		t.Gate, err = gate.ForRing(n)
		if err != nil {
			return nil, err
		}
	case Ordered:
		t.Queue = lockset.NewQueue[int]()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
	return t, nil
}

// Seats returns the number of diners the table holds.
func (t *Table) Seats() int { return t.Ring.Len() }

func (t *Table) check(p Protocol) error {
	if t == nil || t.Ring == nil || t.Ledger == nil {
		return fmt.Errorf("%w %s: missing ring or ledger", ErrTable, p)
	}
	if t.Ledger.Len() != t.Ring.Len() {
		return fmt.Errorf("%w %s: ledger has %d rows for %d forks",
			ErrTable, p, t.Ledger.Len(), t.Ring.Len())
	}
	switch p {
	case Naive:
	case Gated:
		if t.Gate == nil {
			return fmt.Errorf("%w %s: missing gate", ErrTable, p)
		}
	case Ordered:
		if t.Queue == nil {
			return fmt.Errorf("%w %s: missing queue", ErrTable, p)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
	return nil
}
