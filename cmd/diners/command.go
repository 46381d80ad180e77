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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/field-eng-diners/diner"
	"github.com/cockroachdb/field-eng-diners/sim"
	"github.com/cockroachdb/field-eng-diners/version"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// flags holds values bound to the command line. Only flags the user
// actually set are applied over the configuration file.
type flags struct {
	config      string
	duration    int
	tick        time.Duration
	thinkMin    time.Duration
	thinkMax    time.Duration
	eatMin      time.Duration
	eatMax      time.Duration
	seed        uint64
	cancellable bool
	lockstep    bool
	metrics     bool
	noColor     bool
	logLevel    string
	logFormat   string
}

func newCommand(stdout io.Writer) *cobra.Command {
	var f flags
	// Diners log from their own goroutines while the controller reports.
	out := sim.SyncWriter(stdout)
	defaults := sim.DefaultConfig()

	protocols := make([]string, len(diner.Protocols))
	for i, p := range diner.Protocols {
		protocols[i] = p.String()
	}

	cmd := &cobra.Command{
		Use:   "diners " + strings.Join(protocols, "|") + " [agents]",
		Short: "Simulate dining philosophers contending for a ring of forks",
		Long: `Seats agents around a table with one fork between each neighbor
and runs them for a fixed number of ticks.

  naive    take the left fork, then the right; may deadlock
  gated    at most agents-1 diners may reach for forks at once
  ordered  fork pairs are granted in request order`,
		Version:   version.Current().String(),
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: protocols,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args)
			if err != nil {
				return err
			}
			logger, err := f.logger(out)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			c, err := sim.NewController(cfg, logger, reg)
			if err != nil {
				return err
			}
			// Arguments are valid; failures from here on are not
			// usage errors.
			cmd.SilenceUsage = true

			c.SetReporter(sim.NewConsoleReporter(out, !f.noColor && terminal(stdout)))
			if _, err := c.Run(cmd.Context()); err != nil {
				return err
			}
			if f.metrics {
				return sim.WriteMetrics(out, reg)
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.IntVar(&f.duration, "duration", defaults.Duration, "number of ticks to run for")
	fs.DurationVar(&f.tick, "tick", defaults.Tick, "sampling interval")
	fs.DurationVar(&f.thinkMin, "think-min", defaults.ThinkMin, "shortest thinking period")
	fs.DurationVar(&f.thinkMax, "think-max", defaults.ThinkMax, "longest thinking period")
	fs.DurationVar(&f.eatMin, "eat-min", defaults.EatMin, "shortest meal")
	fs.DurationVar(&f.eatMax, "eat-max", defaults.EatMax, "longest meal")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed; 0 picks one from the clock")
	fs.BoolVar(&f.cancellable, "cancellable", false, "make every wait cancellable at shutdown")
	fs.BoolVar(&f.lockstep, "lockstep", false, "hold diners after their first fork until all have one")
	fs.BoolVar(&f.metrics, "metrics", false, "print collected metrics after the summary")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "text", "text or json")
	return cmd
}

// resolve layers the configuration file, positional arguments and
// explicitly set flags over the defaults.
func (f *flags) resolve(cmd *cobra.Command, args []string) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if f.config != "" {
		if err := sim.LoadConfig(f.config, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Protocol = args[0]
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return cfg, fmt.Errorf("%w: agents: %q is not a number", sim.ErrConfig, args[1])
		}
		cfg.Agents = n
	}

	fs := cmd.Flags()
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("duration", func() { cfg.Duration = f.duration })
	set("tick", func() { cfg.Tick = f.tick })
	set("think-min", func() { cfg.ThinkMin = f.thinkMin })
	set("think-max", func() { cfg.ThinkMax = f.thinkMax })
	set("eat-min", func() { cfg.EatMin = f.eatMin })
	set("eat-max", func() { cfg.EatMax = f.eatMax })
	set("seed", func() { cfg.Seed = f.seed })
	set("cancellable", func() { cfg.Cancellable = f.cancellable })
	set("lockstep", func() { cfg.Lockstep = f.lockstep })
	return cfg, nil
}

func (f *flags) logger(out io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, fmt.Errorf("%w: log level: %w", sim.ErrConfig, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch f.logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", sim.ErrConfig, f.logFormat)
	}
}

// terminal reports whether out is an interactive terminal.
func terminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
