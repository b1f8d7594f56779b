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
	"errors"
	"fmt"
	"sync"
	"time"
)

// SessionLog is the append-only record of sweep sessions. Every method
// writes one self-contained record and returns only after the record has
// left the process. An error means the record may be lost, and the engine
// aborts the sweep.
type SessionLog interface {
	WriteHeader(h SessionHeader) error
	Append(a Attempt) error
	WriteFooter(f SessionFooter) error
}

// SessionHeader opens a session in the log.
type SessionHeader struct {
	ID     string
	Start  time.Time
	Device DeviceID
	// Description is the human readable device name, if known.
	Description string
	Spec        SweepSpec
}

// SessionFooter closes a session in the log.
type SessionFooter struct {
	ID     string
	End    time.Time
	Result SweepResult
}

// MemoryLog keeps records in memory. It is safe for concurrent use.
type MemoryLog struct {
	mu       sync.Mutex
	headers  []SessionHeader
	attempts []Attempt
	footers  []SessionFooter
}

var _ SessionLog = (*MemoryLog)(nil)

func (m *MemoryLog) WriteHeader(h SessionHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers = append(m.headers, h)
	return nil
}

func (m *MemoryLog) Append(a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MemoryLog) WriteFooter(f SessionFooter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.footers = append(m.footers, f)
	return nil
}

// Headers returns a copy of the recorded headers.
func (m *MemoryLog) Headers() []SessionHeader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionHeader(nil), m.headers...)
}

// Attempts returns a copy of the recorded attempts.
func (m *MemoryLog) Attempts() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Attempt(nil), m.attempts...)
}

// Footers returns a copy of the recorded footers.
func (m *MemoryLog) Footers() []SessionFooter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionFooter(nil), m.footers...)
}

// MultiLog writes every record to each of its logs in order. A record is
// written to all logs even if one of them fails; the errors are joined.
type MultiLog []SessionLog

var _ SessionLog = MultiLog(nil)

func (m MultiLog) WriteHeader(h SessionHeader) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.WriteHeader(h))
	}
	return errors.Join(errs...)
}

func (m MultiLog) Append(a Attempt) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.Append(a))
	}
	return errors.Join(errs...)
}

func (m MultiLog) WriteFooter(f SessionFooter) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.WriteFooter(f))
	}
	return errors.Join(errs...)
}

// LogWriteError reports a failed write to a SessionLog.
type LogWriteError struct {
	// Record is "header", "attempt" or "footer".
	Record string
	Err    error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("session log: writing %s: %v", e.Record, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }
