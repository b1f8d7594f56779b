// Copyright 2026 the FrisbeeLite Authors.  All rights reserved.
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

package frisbee

import (
	"cmp"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// FailureStats counts transport failures by message. The sweep goroutine
// records while other goroutines read.
type FailureStats struct {
	counts *xsync.MapOf[string, *xsync.Counter]
}

// NewFailureStats returns an empty FailureStats.
func NewFailureStats() *FailureStats {
	return &FailureStats{counts: xsync.NewMapOf[string, *xsync.Counter]()}
}

// Record counts one failure with the given message.
func (s *FailureStats) Record(msg string) {
	c, _ := s.counts.LoadOrCompute(msg, func() *xsync.Counter {
		return xsync.NewCounter()
	})
	c.Inc()
}

// Count returns how many failures carried msg.
func (s *FailureStats) Count(msg string) int64 {
	c, ok := s.counts.Load(msg)
	if !ok {
		return 0
	}
	return c.Value()
}

// Reset forgets all counts.
func (s *FailureStats) Reset() {
	s.counts.Clear()
}

// FailureCount is one entry of FailureStats.Top.
type FailureCount struct {
	Message string
	Count   int64
}

// Top returns up to n messages ordered by descending count, then message.
// n <= 0 returns all of them.
func (s *FailureStats) Top(n int) []FailureCount {
	var out []FailureCount
	s.counts.Range(func(msg string, c *xsync.Counter) bool {
		out = append(out, FailureCount{Message: msg, Count: c.Value()})
		return true
	})
	slices.SortFunc(out, func(a, b FailureCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Message, b.Message)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
