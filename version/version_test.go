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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    *Version
		wantErr bool
	}{
		{
			name:    "valid version",
			version: "v24.3.17",
			want:    &Version{version: "v24.3.17"},
		},
		{
			name:    "valid pre-release",
			version: "v24.3.17-alpha.1",
			want:    &Version{version: "v24.3.17-alpha.1"},
		},
		{
			name:    "short form",
			version: "v1.2",
			want:    &Version{version: "v1.2.0"},
		},
		{
			name:    "missing v",
			version: "1.2.3",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			got, err := Parse(tt.version)
			if tt.wantErr {
				a.Error(err)
				return
			}
			a.NoError(err)
			a.Equal(tt.want, got)
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		minVersion string
		want       bool
	}{
		{"equal versions", "v24.3.17", "v24.3.17", true},
		{"greater version", "v24.3.18", "v24.3.17", true},
		{"lesser version", "v24.3.16", "v24.3.17", false},
		{"pre-release less than release", "v24.3.17-alpha.1", "v24.3.17", false},
		{"release greater than pre-release", "v24.3.17", "v24.3.17-alpha.1", true},
		{"major version greater", "v25.0.0", "v24.3.17", true},
		{"major version lesser", "v23.1.0", "v24.3.17", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := MustParse(tt.version)
			if got := v.AtLeast(MustParse(tt.minVersion)); got != tt.want {
				t.Errorf("Version.AtLeast() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	a := assert.New(t)
	saved := build
	defer func() { build = saved }()
	build = "v1.4.0"

	a.NoError(Check(""))
	a.NoError(Check("v1.3.9"))
	a.NoError(Check("v1.4.0"))
	a.ErrorIs(Check("v1.5.0"), ErrIncompatible)
	a.ErrorContains(Check("latest"), "not a semver")
	a.Equal("v1.4.0", Current().String())
	a.Panics(func() { MustParse("nope") })
}
