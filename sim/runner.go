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

package sim

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrRunnerFull is returned when a [Runner] refuses to start another
// goroutine.
var ErrRunnerFull = errors.New("runner limit exceeded")

// A Runner is used by the [Controller] to start diners and to join
// them.
type Runner interface {
	// Go should execute the function in a non-blocking fashion.
	Go(func() error) error
	// Wait blocks until every function passed to Go has returned and
	// reports the first error.
	Wait() error
}

// GroupRunner returns a Runner backed by an errgroup that admits at
// most limit concurrent functions. A non-positive limit is unbounded.
func GroupRunner(limit int) Runner {
	r := &groupRunner{}
	if limit > 0 {
		r.eg.SetLimit(limit)
	}
	return r
}

type groupRunner struct {
	eg errgroup.Group
}

func (r *groupRunner) Go(fn func() error) error {
	if !r.eg.TryGo(func() error { return tryCall(fn) }) {
		return ErrRunnerFull
	}
	return nil
}

func (r *groupRunner) Wait() error { return r.eg.Wait() }

// tryCall invokes the function with a panic handler.
func tryCall(fn func() error) (err error) {
	// Install panic handler before executing diner code.
	defer func() {
		x := recover()
		switch t := x.(type) {
		case nil:
		// Success.
		case error:
			err = t
		default:
			err = fmt.Errorf("panic in diner: %v", t)
		}
	}()

	return fn()
}
