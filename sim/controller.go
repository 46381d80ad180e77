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

// Package sim runs a table of diners for a fixed number of ticks,
// sampling the shared ledger once per tick.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/field-eng-diners/diner"
	"github.com/cockroachdb/field-eng-diners/ledger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrStartup is returned when the diners could not all be started.
var ErrStartup = errors.New("could not start diners")

// errStopping is the cancellation cause handed to cancellable diners.
var errStopping = errors.New("simulation stopping")

// Snapshot is a consistent view of the table's ledger.
type Snapshot = ledger.Snapshot[diner.State]

// Result summarizes a finished run.
type Result struct {
	Protocol   diner.Protocol
	Ticks      int      // Ticks observed before stopping.
	Meals      []uint64 // Final meal count per diner.
	Deadlocked bool     // A circular wait was observed.
}

// Total returns the number of meals eaten by all diners.
func (r *Result) Total() uint64 {
	var ret uint64
	for _, m := range r.Meals {
		ret += m
	}
	return ret
}

// A Controller owns the table and drives a single run.
type Controller struct {
	cfg      Config
	id       uuid.UUID
	events   *diner.Events
	logger   *slog.Logger
	metrics  *Metrics
	reporter Reporter
	runner   Runner
	table    *diner.Table

	ran        atomic.Bool
	stop       atomic.Bool
	deadlocked bool
}

// NewController validates cfg and sets the table. A nil logger discards
// log output; a nil registerer leaves the metrics unregistered. Every
// log record is tagged with a run identifier.
func NewController(
	cfg Config, logger *slog.Logger, reg prometheus.Registerer,
) (*Controller, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}
	table, err := diner.NewTable(cfg.Agents, cfg.ProtocolValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.New()
	return &Controller{
		cfg:      cfg,
		id:       id,
		logger:   logger.With(slog.String("run", id.String())),
		metrics:  NewMetrics(reg),
		reporter: NopReporter{},
		table:    table,
	}, nil
}

// Config returns the validated configuration.
func (c *Controller) Config() Config { return c.cfg }

// ID identifies the run in log output.
func (c *Controller) ID() uuid.UUID { return c.id }

// Table returns the shared table.
func (c *Controller) Table() *diner.Table { return c.table }

// SetEvents installs additional diner callbacks. It must be called
// before Run.
func (c *Controller) SetEvents(e *diner.Events) { c.events = e }

// SetReporter replaces the default reporter, which discards its input.
func (c *Controller) SetReporter(r Reporter) { c.reporter = r }

// SetRunner replaces the default errgroup-backed runner.
func (c *Controller) SetRunner(r Runner) { c.runner = r }

// Run starts one goroutine per diner, samples the ledger once per tick
// for the configured duration, raises the stop flag and waits for every
// diner to return. In the default mode that wait is unbounded, so a
// deadlocked table never returns. Canceling ctx ends the sampling early
// but otherwise behaves like reaching the configured duration.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return nil, errors.New("controller has already run")
	}
	runCtx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	diners, err := c.seat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	runner := c.runner
	if runner == nil {
		runner = GroupRunner(len(diners))
	}

	// Diners are held at the start line until all of them are running.
	start := make(chan struct{})
	var aborted atomic.Bool
	for _, d := range diners {
		err := runner.Go(func() error {
			<-start
			if aborted.Load() {
				return nil
			}
			if err := d.Run(runCtx, &c.stop); err != nil {
				return fmt.Errorf("diner %d: %w", d.ID(), err)
			}
			return nil
		})
		if err != nil {
			aborted.Store(true)
			close(start)
			_ = runner.Wait()
			c.logger.Error("could not start diner", slog.Int("diner", d.ID()), slog.Any("error", err))
			return nil, fmt.Errorf("%w: diner %d: %w", ErrStartup, d.ID(), err)
		}
	}

	c.logger.Info("simulation started",
		slog.String("protocol", c.cfg.Protocol),
		slog.Int("agents", c.cfg.Agents),
		slog.Int("duration", c.cfg.Duration),
		slog.Duration("tick", c.cfg.Tick),
		slog.Bool("cancellable", c.cfg.Cancellable),
		slog.Bool("lockstep", c.cfg.Lockstep),
		slog.Uint64("seed", c.cfg.Seed))
	c.reporter.Started(c.cfg)
	close(start)

	ticks := c.sample(ctx)

	c.stop.Store(true)
	if c.cfg.Cancellable {
		cancel(errStopping)
	}
	c.logger.Info("stop requested, waiting for diners", slog.Int("ticks", ticks))
	c.reporter.Stopping(ticks)

	err = runner.Wait()
	res := &Result{
		Protocol:   c.cfg.ProtocolValue(),
		Ticks:      ticks,
		Meals:      c.table.Ledger.Snapshot().Meals,
		Deadlocked: c.deadlocked,
	}
	if err != nil {
		c.logger.Error("diner failed", slog.Any("error", err))
	} else {
		c.logger.Info("all diners finished", slog.Uint64("meals", res.Total()))
	}
	c.reporter.Final(res)
	return res, err
}

// seat builds one diner per seat, sharing the table and callbacks.
func (c *Controller) seat() ([]*diner.Diner, error) {
	var barrier *diner.Barrier
	if c.cfg.Lockstep {
		parties := c.cfg.Agents
		if c.table.Gate != nil {
			parties = min(parties, c.table.Gate.Capacity())
		}
		barrier = diner.NewBarrier(parties)
	}
	opts := diner.Options{
		Protocol:       c.cfg.ProtocolValue(),
		Timing:         c.cfg.Timing,
		Cancellable:    c.cfg.Cancellable,
		AttemptTimeout: c.cfg.AttemptTimeout,
		Barrier:        barrier,
		Events:         diner.Join(c.logEvents(), c.metrics.Events(), c.events),
		Seed:           c.cfg.Seed,
	}
	ret := make([]*diner.Diner, c.table.Seats())
	for i := range ret {
		d, err := diner.New(i, c.table, opts)
		if err != nil {
			return nil, err
		}
		ret[i] = d
	}
	return ret, nil
}

// sample takes one snapshot per tick and returns the number of ticks
// observed.
func (c *Controller) sample(ctx context.Context) int {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()
	for tick := 1; tick <= c.cfg.Duration; tick++ {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			c.logger.Info("sampling interrupted", slog.Any("cause", context.Cause(ctx)))
			return tick - 1
		}
		c.observe(tick, c.table.Ledger.Snapshot())
	}
	return c.cfg.Duration
}

func (c *Controller) observe(tick int, snap Snapshot) {
	c.metrics.ticks.Inc()
	if g := c.table.Gate; g != nil {
		c.metrics.gateInside.Set(float64(g.Inside()))
	}
	c.reporter.Tick(tick, snap)

	if c.deadlocked || !snap.Every(func(s diner.State) bool { return s == diner.AcquiringSecond }) {
		return
	}
	c.deadlocked = true
	c.metrics.deadlock.Set(1)
	c.logger.Warn("circular wait detected",
		slog.Int("tick", tick),
		slog.Int("agents", len(snap.States)))
	c.reporter.Deadlock(tick, snap)
}

// logEvents reports diner lifecycles through the logger.
func (c *Controller) logEvents() *diner.Events {
	return &diner.Events{
		OnMeal: func(id int, meals uint64) {
			c.logger.Info("eating", slog.Int("diner", id), slog.Uint64("meals", meals))
		},
		OnTerminate: func(id int, err error) {
			if err != nil {
				c.logger.Warn("diner terminated", slog.Int("diner", id), slog.Any("error", err))
				return
			}
			c.logger.Info("diner terminated", slog.Int("diner", id))
		},
		OnTransition: func(id int, from, to diner.State) {
			// Meals and terminations have their own records.
			if to == diner.Eating || to == diner.Terminated {
				return
			}
			c.logger.Info(to.String(),
				slog.Int("diner", id),
				slog.String("from", from.String()))
		},
		OnWait: func(id int, what diner.Resource, waited time.Duration) {
			c.logger.Info("acquired",
				slog.Int("diner", id),
				slog.String("resource", string(what)),
				slog.Duration("waited", waited))
		},
	}
}
