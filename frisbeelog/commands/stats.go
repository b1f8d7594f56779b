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

package commands

import (
	"fmt"
	"io"
	"slices"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// SessionStats summarizes one session of a log.
type SessionStats struct {
	Header *frisbee.SessionHeader
	Footer *frisbee.SessionFooter
	// Attempts counted from the log itself.
	Attempts   uint64
	Successful uint64
	// Responding lists the bRequest values that succeeded at least once.
	Responding []uint8
	Failures   []frisbee.FailureCount
}

// Complete reports whether the session was closed by a footer.
func (s *SessionStats) Complete() bool { return s.Footer != nil }

// Stats reads the log at path and summarizes each session. Attempts before
// the first header are grouped in a session without a header.
func Stats(path string) ([]*SessionStats, error) {
	var (
		all        []*SessionStats
		cur        *SessionStats
		failures   *frisbee.FailureStats
		responding map[uint8]bool
	)
	finish := func() {
		if cur == nil {
			return
		}
		for rq := range responding {
			cur.Responding = append(cur.Responding, rq)
		}
		slices.Sort(cur.Responding)
		cur.Failures = failures.Top(0)
		all = append(all, cur)
		cur = nil
	}
	start := func(h *frisbee.SessionHeader) {
		finish()
		cur = &SessionStats{Header: h}
		failures = frisbee.NewFailureStats()
		responding = make(map[uint8]bool)
	}

	err := walk(path, func(r sessionRecord) error {
		switch r.Kind {
		case frisbee.RecordHeader:
			start(r.Header)
		case frisbee.RecordAttempt:
			if cur == nil {
				start(nil)
			}
			cur.Attempts++
			if r.Attempt.Outcome.OK() {
				cur.Successful++
				responding[r.Attempt.Request.Request] = true
			} else {
				failures.Record(r.Attempt.Outcome.Message)
			}
		case frisbee.RecordFooter:
			if cur == nil {
				start(nil)
			}
			cur.Footer = r.Footer
			finish()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	finish()
	return all, nil
}

// RunStats prints the statistics of every session in the log.
func RunStats(path string, w io.Writer) error {
	sessions, err := Stats(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "Sessions: %d\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintln(w)
		if s.Header != nil {
			fmt.Fprintf(w, "Session %s\n", s.Header.ID)
			fmt.Fprintf(w, "  Started:    %s\n", s.Header.Start.Format(timeLayout))
			fmt.Fprintf(w, "  Device:     %s %s\n", s.Header.Device, s.Header.Description)
			fmt.Fprintf(w, "  Sweep:      %s (%d requests)\n", s.Header.Spec, s.Header.Spec.Count())
		} else {
			fmt.Fprintf(w, "Session without header\n")
		}
		switch {
		case !s.Complete():
			fmt.Fprintf(w, "  Status:     incomplete (no footer)\n")
		case s.Footer.Result.Cancelled:
			fmt.Fprintf(w, "  Status:     stopped %s\n", s.Footer.End.Format(timeLayout))
		default:
			fmt.Fprintf(w, "  Status:     completed %s\n", s.Footer.End.Format(timeLayout))
		}
		fmt.Fprintf(w, "  Attempts:   %d\n", s.Attempts)
		fmt.Fprintf(w, "  Successful: %d\n", s.Successful)
		fmt.Fprintf(w, "  Failed:     %d\n", s.Attempts-s.Successful)
		if s.Complete() && s.Footer.Result.Total != s.Attempts {
			fmt.Fprintf(w, "  Warning:    footer reports %d attempts\n", s.Footer.Result.Total)
		}
		if len(s.Responding) > 0 {
			fmt.Fprintf(w, "  Responding bRequest values:")
			for _, rq := range s.Responding {
				fmt.Fprintf(w, " 0x%02x", rq)
			}
			fmt.Fprintln(w)
		}
		if len(s.Failures) > 0 {
			fmt.Fprintf(w, "  Errors:\n")
			for _, f := range s.Failures {
				fmt.Fprintf(w, "    %8d  %s\n", f.Count, f.Message)
			}
		}
	}
	return nil
}
