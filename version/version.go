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

// Package version reports the build version of the simulator and
// checks that configuration files were written for a compatible one.
package version

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// ErrIncompatible is returned by [Check] when the running binary is
// older than what a configuration file requires.
var ErrIncompatible = errors.New("incompatible version")

// build is replaced at link time:
//
//	go build -ldflags "-X github.com/cockroachdb/field-eng-diners/version.build=v1.2.3"
var build = "v0.3.0"

// Version holds a semantic version string, including the leading "v".
type Version struct {
	version string
}

// Parse validates a semantic version string.
func Parse(version string) (*Version, error) {
	if !semver.IsValid(version) {
		return nil, fmt.Errorf("not a semver: %q", version)
	}
	return &Version{version: semver.Canonical(version)}, nil
}

// MustParse panics if the version string is not a valid semantic version.
func MustParse(version string) *Version {
	v, err := Parse(version)
	if err != nil {
		panic(err)
	}
	return v
}

// Current returns the version of the running binary.
func Current() *Version {
	return MustParse(build)
}

// AtLeast returns true if the version is at least the specified
// minimum.
func (v *Version) AtLeast(minVersion *Version) bool {
	return semver.Compare(v.version, minVersion.version) >= 0
}

// String implements the Stringer interface.
func (v *Version) String() string {
	return v.version
}

// Check returns an error if the running binary does not satisfy the
// required version. An empty requirement is always satisfied.
func Check(required string) error {
	if required == "" {
		return nil
	}
	req, err := Parse(required)
	if err != nil {
		return err
	}
	if cur := Current(); !cur.AtLeast(req) {
		return fmt.Errorf("%w: requires %s, running %s", ErrIncompatible, req, cur)
	}
	return nil
}
