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
	"fmt"
	"time"
)

// OutcomeKind discriminates the variants of Outcome.
type OutcomeKind uint8

const (
	// OutcomeSuccess means the control transfer completed. Payload holds the
	// data stage of an IN request.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeTransportFailure means the transport reported an error. Message
	// holds its text.
	OutcomeTransportFailure
	// OutcomeCancelled means the request was never dispatched.
	OutcomeCancelled
)

var outcomeKindNames = map[OutcomeKind]string{
	OutcomeSuccess:          "success",
	OutcomeTransportFailure: "transport-failure",
	OutcomeCancelled:        "cancelled",
}

func (k OutcomeKind) String() string {
	if s, ok := outcomeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of dispatching one control request.
type Outcome struct {
	Kind    OutcomeKind
	Payload []byte
	Message string
}

// Success returns a successful Outcome carrying payload.
func Success(payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

// TransportFailure returns a failed Outcome carrying err's text.
func TransportFailure(err error) Outcome {
	return Outcome{Kind: OutcomeTransportFailure, Message: err.Error()}
}

// Cancelled returns the Outcome of a request that was not dispatched.
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// OK reports whether the transfer succeeded.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("Received: %s", formatPayload(o.Payload))
	case OutcomeTransportFailure:
		return fmt.Sprintf("Error: %s", o.Message)
	default:
		return o.Kind.String()
	}
}

// formatPayload renders bytes as space separated hex pairs inside brackets,
// "[]" for an empty payload.
func formatPayload(p []byte) string {
	if len(p) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[% x]", p)
}

// Attempt records one dispatched control request. Attempts are not modified
// after creation.
type Attempt struct {
	Time    time.Time
	Request ControlRequest
	Outcome Outcome
}

// SweepResult counts the attempts of a session.
type SweepResult struct {
	Total      uint64
	Successful uint64
	// Cancelled is set when the sweep was stopped before the last combination.
	Cancelled bool
}

// Failed returns the number of attempts that ended in a transport failure.
func (r SweepResult) Failed() uint64 {
	return r.Total - r.Successful
}

func (r SweepResult) String() string {
	s := fmt.Sprintf("Total: %d, Successful: %d, Failed: %d", r.Total, r.Successful, r.Failed())
	if r.Cancelled {
		s += " (stopped)"
	}
	return s
}

// EngineState is the lifecycle state of an Engine.
type EngineState uint32

const (
	// StateIdle means no device handle is held.
	StateIdle EngineState = iota
	// StateConnected means a device handle is held and no sweep is running.
	StateConnected
	// StateSweeping means a sweep is in progress.
	StateSweeping
	// StateStopped means the last sweep was cancelled or aborted. The
	// device handle is still held.
	StateStopped
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateSweeping:
		return "sweeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
