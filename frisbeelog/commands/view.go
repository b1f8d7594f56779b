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
	"strings"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// ViewFilter selects the records shown by RunView. Headers and footers of
// the selected sessions are always shown.
type ViewFilter struct {
	// Session, if set, is a prefix of the session IDs to show.
	Session string
	// Outcome, if set, shows only attempts with that outcome.
	Outcome *frisbee.OutcomeKind
	// Request, if set, shows only attempts with that bRequest.
	Request *uint8
}

func (f ViewFilter) match(r sessionRecord) bool {
	if f.Session != "" && !strings.HasPrefix(r.Session, f.Session) {
		return false
	}
	if r.Kind != frisbee.RecordAttempt {
		return true
	}
	if f.Outcome != nil && r.Attempt.Outcome.Kind != *f.Outcome {
		return false
	}
	if f.Request != nil && r.Attempt.Request.Request != *f.Request {
		return false
	}
	return true
}

// ParseOutcomeFlag maps "ok" and "error" to an outcome kind.
func ParseOutcomeFlag(s string) (frisbee.OutcomeKind, error) {
	switch strings.ToLower(s) {
	case "ok", "success":
		return frisbee.OutcomeSuccess, nil
	case "error", "failed":
		return frisbee.OutcomeTransportFailure, nil
	}
	return 0, fmt.Errorf("invalid outcome %q (want ok or error)", s)
}

// RunView prints the log in a human readable form.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	return walk(path, func(r sessionRecord) error {
		if !filter.match(r) {
			return nil
		}
		_, err := fmt.Fprintln(w, formatRecord(r.Record))
		return err
	})
}

func formatRecord(r frisbee.Record) string {
	switch r.Kind {
	case frisbee.RecordHeader:
		h := r.Header
		name := ""
		if h.Description != "" {
			name = " (" + h.Description + ")"
		}
		return fmt.Sprintf("=== session %s started %s\n    device %s%s\n    sweep  %s (%d requests)",
			h.ID, h.Start.Format(timeLayout), h.Device, name, h.Spec, h.Spec.Count())
	case frisbee.RecordAttempt:
		a := r.Attempt
		mark := "ok "
		if !a.Outcome.OK() {
			mark = "ERR"
		}
		return fmt.Sprintf("%s %s  %s  %s", a.Time.Format(timeLayout), mark, a.Request, a.Outcome)
	case frisbee.RecordFooter:
		f := r.Footer
		state := "completed"
		if f.Result.Cancelled {
			state = "stopped"
		}
		return fmt.Sprintf("=== session %s %s %s: %s", f.ID, state, f.End.Format(timeLayout), f.Result)
	}
	return r.Kind.String()
}

const timeLayout = "2006-01-02 15:04:05.000"
