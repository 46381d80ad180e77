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

package retry

import (
	"errors"
	"math/rand/v2"
	"time"
)

// ErrInvalidArg is raised if an invalid argument is passed to a backoff strategy.
var ErrInvalidArg = errors.New("invalid argument")

type expBackoff struct {
	baseDelay    time.Duration
	currentDelay time.Duration
	limit        int // 0 = forever
	maxDelay     time.Duration
	tryCount     int
}

var _ Backoff = &expBackoff{}

// NewExpBackoff build an exponential backoff strategy.
// Valid maxDelay must be within a microsecond and one hour.
// Use limit=0 for unlimited retries.
func NewExpBackoff(baseDelay time.Duration, maxDelay time.Duration, limit int) (Backoff, error) {
	if maxDelay > time.Hour {
		return nil, ErrInvalidArg
	}
	if baseDelay > maxDelay {
		return nil, ErrInvalidArg
	}
	if maxDelay < time.Microsecond {
		return nil, ErrInvalidArg
	}
	if baseDelay <= 0 || limit < 0 {
		return nil, ErrInvalidArg
	}
	return &expBackoff{
		baseDelay: baseDelay,
		limit:     limit,
		maxDelay:  maxDelay,
	}, nil
}

// Next implements Backoff
func (e *expBackoff) Next() (time.Duration, bool) {
	if e.limit != 0 && e.tryCount >= e.limit {
		return 0, false
	}
	e.tryCount++
	if e.currentDelay >= e.maxDelay {
		return e.maxDelay, true
	}
	e.currentDelay = e.baseDelay << (e.tryCount - 1)
	if e.maxDelay > 0 && e.currentDelay > e.maxDelay {
		return e.maxDelay, true
	}
	return e.currentDelay, true
}

type jittered struct {
	inner  Backoff
	rng    *rand.Rand
	spread float64
}

var _ Backoff = &jittered{}

// WithJitter randomizes each delay produced by the backoff by up to
// the given fraction in either direction, so that callers who started
// retrying together drift apart. The generator is owned by the
// returned Backoff and must not be shared.
func WithJitter(b Backoff, spread float64, rng *rand.Rand) (Backoff, error) {
	if spread < 0 || spread > 1 || rng == nil {
		return nil, ErrInvalidArg
	}
	return &jittered{inner: b, rng: rng, spread: spread}, nil
}

// Next implements Backoff
func (j *jittered) Next() (time.Duration, bool) {
	d, ok := j.inner.Next()
	if !ok || d <= 0 || j.spread == 0 {
		return d, ok
	}
	// Uniform in [1-spread, 1+spread).
	scale := 1 + j.spread*(2*j.rng.Float64()-1)
	return time.Duration(float64(d) * scale), true
}
