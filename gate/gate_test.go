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

package gate

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCapacity(t *testing.T) {
	tests := []struct {
		name    string
		forks   int
		want    int
		wantErr bool
	}{
		{name: "two forks", forks: 2, want: 1},
		{name: "five forks", forks: 5, want: 4},
		{name: "one fork", forks: 1, wantErr: true},
		{name: "no forks", forks: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			g, err := ForRing(tt.forks)
			if tt.wantErr {
				r.ErrorIs(err, ErrCapacity)
				return
			}
			r.NoError(err)
			r.Equal(tt.want, g.Capacity())
		})
	}
}

func TestEnterLeave(t *testing.T) {
	r := require.New(t)
	g, err := New(2)
	r.NoError(err)

	r.True(g.TryEnter())
	r.NoError(g.Enter(context.Background()))
	r.Equal(2, g.Inside())
	r.False(g.TryEnter())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.ErrorIs(g.Enter(ctx), context.DeadlineExceeded)
	r.Equal(2, g.Inside())

	g.Leave()
	g.Leave()
	r.Zero(g.Inside())
	r.Equal(2, g.Peak())
	r.Panics(func() { g.Leave() })
}

// Many more callers than permits; the number inside must never exceed
// the capacity.
func TestBoundedConcurrency(t *testing.T) {
	const capacity = 4
	const callers = 32
	r := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := ForRing(capacity + 1)
	r.NoError(err)

	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		eg.Go(func() error {
			for j := 0; j < 100; j++ {
				if err := g.Enter(egCtx); err != nil {
					return err
				}
				if n := g.Inside(); n > capacity {
					t.Errorf("%d inside a gate of %d", n, capacity)
				}
				runtime.Gosched()
				g.Leave()
			}
			return nil
		})
	}
	r.NoError(eg.Wait())
	r.Zero(g.Inside())
	r.LessOrEqual(g.Peak(), capacity)
	r.Positive(g.Peak())
}
