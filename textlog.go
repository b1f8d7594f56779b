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
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Text log layout, one record per line:
//
//	**** FrisbeeLite - Sweep started at 2026-10-18T12:00:00.1+02:00 session=6b1f… device=05ac:1297 name="Apple, Inc." spec="bmRequestType=0x80 (fixed) …" ****
//	2026/10/18 12:00:00.000    bmRequestType: 0x80 bRequest: 0x06 wValue: 0x0100 wIndex: 0x0000 wLength: 0x0012    Received: [12 01 00 02]
//	2026/10/18 12:00:00.002    bmRequestType: 0x80 bRequest: 0x07 wValue: 0x0100 wIndex: 0x0000 wLength: 0x0012    Error: control: transfer failed: libusb: pipe error
//	**** Sweep completed session=6b1f… - Total: 2, Successful: 1 ****
//
// Blank lines between sessions are ignored by readers.
const (
	attemptTimeLayout = "2006/01/02 15:04:05.000"
	fieldSep          = "    "

	markerPrefix  = "**** "
	markerSuffix  = " ****"
	startedMarker = markerPrefix + "FrisbeeLite - Sweep started at "
	endedMarker   = markerPrefix + "Sweep "
)

// DefaultLogPath returns the log file name for the calendar day of now.
// All sessions of a day share the file.
func DefaultLogPath(now time.Time) string {
	return fmt.Sprintf("FrisbeeLite_logfile_%s.txt", now.Format(time.DateOnly))
}

// TextLog is a SessionLog writing human readable lines to a file.
// The file is opened for appending and never truncated.
type TextLog struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

var _ SessionLog = (*TextLog)(nil)

// OpenTextLog opens path for appending, creating it if needed.
func OpenTextLog(path string) (*TextLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &TextLog{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the file the log writes to.
func (l *TextLog) Path() string { return l.path }

func (l *TextLog) WriteHeader(h SessionHeader) error {
	if l.f == nil {
		return os.ErrClosed
	}
	fmt.Fprintf(l.w, "\n%s\n\n", formatHeader(h))
	return l.w.Flush()
}

func (l *TextLog) Append(a Attempt) error {
	if l.f == nil {
		return os.ErrClosed
	}
	fmt.Fprintln(l.w, formatAttempt(a))
	return l.w.Flush()
}

func (l *TextLog) WriteFooter(f SessionFooter) error {
	if l.f == nil {
		return os.ErrClosed
	}
	fmt.Fprintf(l.w, "\n%s\n", formatFooter(f))
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.f.Sync()
}

// Close flushes and closes the file. It is safe to call Close more than once.
func (l *TextLog) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.w.Flush()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

func formatHeader(h SessionHeader) string {
	s := fmt.Sprintf("%s%s session=%s device=%s", startedMarker, h.Start.Format(time.RFC3339Nano), h.ID, h.Device)
	if h.Description != "" {
		s += fmt.Sprintf(" name=%q", h.Description)
	}
	return s + fmt.Sprintf(" spec=%q%s", h.Spec.String(), markerSuffix)
}

// lineBreaks folds multi-line transport messages onto the record's line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func formatAttempt(a Attempt) string {
	return a.Time.Format(attemptTimeLayout) + fieldSep + a.Request.String() + fieldSep + lineBreaks.Replace(a.Outcome.String())
}

func formatFooter(f SessionFooter) string {
	verb := "completed"
	if f.Result.Cancelled {
		verb = "stopped"
	}
	return fmt.Sprintf("%s%s session=%s - Total: %d, Successful: %d%s",
		endedMarker, verb, f.ID, f.Result.Total, f.Result.Successful, markerSuffix)
}
