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
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/field-eng-diners/diner"
	"github.com/cockroachdb/field-eng-diners/version"
	"gopkg.in/yaml.v3"
)

// ErrConfig tags configuration errors, which are reported before any
// diner is started.
var ErrConfig = errors.New("invalid configuration")

// Defaults used by [DefaultConfig].
const (
	DefaultAgents   = 5
	DefaultDuration = 30
	DefaultTick     = time.Second
)

// Config describes one simulation run.
type Config struct {
	// Protocol is one of the names accepted by [diner.ParseProtocol].
	Protocol string `yaml:"protocol"`
	// Agents is the number of diners, and of forks.
	Agents int `yaml:"agents"`
	// Duration is the number of ticks to run for.
	Duration int `yaml:"duration"`
	// Tick is the sampling interval.
	Tick time.Duration `yaml:"tick"`

	diner.Timing `yaml:",inline"`

	// Seed feeds every diner's random source. Zero picks one from the
	// clock.
	Seed uint64 `yaml:"seed"`

	Cancellable    bool          `yaml:"cancellable"`
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
	Lockstep       bool          `yaml:"lockstep"`

	// Requires is the minimum simulator version the file was written
	// for.
	Requires string `yaml:"requires"`

	protocol diner.Protocol // Set by Preflight.
}

// DefaultConfig returns a 30 tick run of five diners.
func DefaultConfig() Config {
	return Config{
		Agents:   DefaultAgents,
		Duration: DefaultDuration,
		Tick:     DefaultTick,
		Timing:   diner.DefaultTiming(),
	}
}

// LoadConfig overlays the YAML file at path onto cfg. Fields absent
// from the file keep their current values; unknown fields are an
// error.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	return nil
}

// Preflight validates the configuration and fills in defaults for
// zero-valued optional fields.
func (c *Config) Preflight() error {
	p, err := diner.ParseProtocol(c.Protocol)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Agents < 2 {
		return fmt.Errorf("%w: at least two agents are required, got %d", ErrConfig, c.Agents)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: negative duration %d", ErrConfig, c.Duration)
	}
	if c.Tick < 0 || c.AttemptTimeout < 0 {
		return fmt.Errorf("%w: intervals must not be negative", ErrConfig)
	}
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = diner.DefaultAttemptTimeout
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Lockstep && p == diner.Ordered {
		return fmt.Errorf("%w: lockstep start is not supported by the %s protocol", ErrConfig, p)
	}
	if err := version.Check(c.Requires); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	c.protocol = p
	return nil
}

// ProtocolValue returns the parsed protocol. It is only meaningful
// after a successful call to Preflight.
func (c *Config) ProtocolValue() diner.Protocol { return c.protocol }
