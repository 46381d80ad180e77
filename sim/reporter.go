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
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// A Reporter receives the controller's periodic and final
// observations. Calls are made from the controller's goroutine only.
type Reporter interface {
	Started(cfg Config)
	Tick(tick int, snap Snapshot)
	Deadlock(tick int, snap Snapshot)
	Stopping(ticks int)
	Final(res *Result)
}

// NopReporter discards everything.
type NopReporter struct{}

var _ Reporter = NopReporter{}

func (NopReporter) Started(Config)         {}
func (NopReporter) Tick(int, Snapshot)     {}
func (NopReporter) Deadlock(int, Snapshot) {}
func (NopReporter) Stopping(int)           {}
func (NopReporter) Final(*Result)          {}

// ConsoleReporter prints human-readable snapshots. Each call issues a
// single Write, so a writer shared with a logger keeps blocks whole as
// long as the writer serializes its Write calls.
type ConsoleReporter struct {
	w      io.Writer
	header func(a ...any) string
	eating func(a ...any) string
	warn   func(a ...any) string
}

var _ Reporter = (*ConsoleReporter)(nil)

// NewConsoleReporter writes to w, highlighting with ANSI colors if
// colorize is set.
func NewConsoleReporter(w io.Writer, colorize bool) *ConsoleReporter {
	style := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &ConsoleReporter{
		w:      w,
		header: style(color.FgHiCyan, color.Bold),
		eating: style(color.FgHiGreen),
		warn:   style(color.FgHiRed, color.Bold),
	}
}

// emit buffers one block and writes it in a single call.
func (r *ConsoleReporter) emit(fn func(w io.Writer)) {
	var buf bytes.Buffer
	fn(&buf)
	_, _ = r.w.Write(buf.Bytes())
}

// Started implements Reporter.
func (r *ConsoleReporter) Started(cfg Config) {
	mode := "as-is"
	if cfg.Cancellable {
		mode = "cancellable"
	}
	r.emit(func(w io.Writer) {
		fmt.Fprintln(w, r.header(fmt.Sprintf(
			"=== %s protocol: %d diners, %d ticks of %s, %s acquisition ===",
			cfg.Protocol, cfg.Agents, cfg.Duration, cfg.Tick, mode)))
	})
}

// Tick implements Reporter.
func (r *ConsoleReporter) Tick(tick int, snap Snapshot) {
	eating := make([]string, len(snap.Eating))
	for i, id := range snap.Eating {
		eating[i] = r.eating(id)
	}
	if len(eating) == 0 {
		eating = append(eating, "none")
	}
	meals := make([]string, len(snap.Meals))
	for i, m := range snap.Meals {
		meals[i] = fmt.Sprintf("D%d:%d", i, m)
	}

	r.emit(func(w io.Writer) {
		fmt.Fprintln(w, r.header(fmt.Sprintf("=== tick %d ===", tick)))
		fmt.Fprintf(w, "eating: %s\n", strings.Join(eating, " "))
		fmt.Fprintf(w, "meals:  %s\n", strings.Join(meals, " "))
	})
}

// Deadlock implements Reporter.
func (r *ConsoleReporter) Deadlock(tick int, _ Snapshot) {
	r.emit(func(w io.Writer) {
		fmt.Fprintln(w, r.warn(fmt.Sprintf(
			"!!! circular wait at tick %d: every diner holds one fork and waits for the next", tick)))
	})
}

// Stopping implements Reporter.
func (r *ConsoleReporter) Stopping(ticks int) {
	r.emit(func(w io.Writer) {
		fmt.Fprintf(w, "stopping after %d ticks, waiting for diners...\n", ticks)
	})
}

// Final implements Reporter.
func (r *ConsoleReporter) Final(res *Result) {
	r.emit(func(w io.Writer) {
		fmt.Fprintln(w, r.header("=== final results ==="))
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DINER\tMEALS")
		for i, m := range res.Meals {
			fmt.Fprintf(tw, "%d\t%d\n", i, m)
		}
		fmt.Fprintf(tw, "TOTAL\t%d\n", res.Total())
		_ = tw.Flush()
		if res.Deadlocked {
			fmt.Fprintln(w, r.warn("a circular wait was observed during the run"))
		}
	})
}
