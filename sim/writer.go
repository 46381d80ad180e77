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
	"io"
	"sync"
)

// SyncWriter returns a writer that serializes calls to w. The logger
// and a [ConsoleReporter] should share one so that diner goroutines and
// the controller do not interleave within a record.
func SyncWriter(w io.Writer) io.Writer {
	ret := &syncWriter{}
	ret.mu.w = w
	return ret
}

type syncWriter struct {
	mu struct {
		sync.Mutex
		w io.Writer
	}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.w.Write(p)
}
