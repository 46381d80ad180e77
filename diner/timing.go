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
	"math"
	"math/rand/v2"
	"time"
)

// ErrTiming is returned by [Timing.Validate].
var ErrTiming = errors.New("invalid timing")

// Timing bounds the randomized think and eat durations. Each duration
// is drawn uniformly from its inclusive range.
type Timing struct {
	ThinkMin time.Duration `yaml:"thinkMin"`
	ThinkMax time.Duration `yaml:"thinkMax"`
	EatMin   time.Duration `yaml:"eatMin"`
	EatMax   time.Duration `yaml:"eatMax"`
}

// DefaultTiming thinks for one to three seconds and eats for half a
// second to a second and a half.
func DefaultTiming() Timing {
	return Timing{
		ThinkMin: time.Second,
		ThinkMax: 3 * time.Second,
		EatMin:   500 * time.Millisecond,
		EatMax:   1500 * time.Millisecond,
	}
}

// Validate checks that both ranges are non-negative, ordered and no
// wider than a random draw can cover.
func (t Timing) Validate() error {
	if t.ThinkMin < 0 || t.EatMin < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrTiming)
	}
	if t.ThinkMin > t.ThinkMax {
		return fmt.Errorf("%w: think range [%s, %s]", ErrTiming, t.ThinkMin, t.ThinkMax)
	}
	if t.EatMin > t.EatMax {
		return fmt.Errorf("%w: eat range [%s, %s]", ErrTiming, t.EatMin, t.EatMax)
	}
	if t.ThinkMax-t.ThinkMin == math.MaxInt64 || t.EatMax-t.EatMin == math.MaxInt64 {
		return fmt.Errorf("%w: range spans every representable duration", ErrTiming)
	}
	return nil
}

func (t Timing) think(rng *rand.Rand) time.Duration { return between(rng, t.ThinkMin, t.ThinkMax) }
func (t Timing) eat(rng *rand.Rand) time.Duration   { return between(rng, t.EatMin, t.EatMax) }

func between(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)+1))
}
