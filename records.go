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
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RecordKind discriminates the records of a session log.
type RecordKind uint8

const (
	RecordHeader RecordKind = iota + 1
	RecordAttempt
	RecordFooter
)

func (k RecordKind) String() string {
	switch k {
	case RecordHeader:
		return "header"
	case RecordAttempt:
		return "attempt"
	case RecordFooter:
		return "footer"
	default:
		return fmt.Sprintf("RecordKind(%d)", int(k))
	}
}

// Record is one entry read back from a session log. Exactly one of Header,
// Attempt and Footer is set, matching Kind.
type Record struct {
	Kind    RecordKind
	Header  *SessionHeader
	Attempt *Attempt
	Footer  *SessionFooter
}

// RecordReader iterates over the records of a session log.
type RecordReader interface {
	// Next returns the next record, or io.EOF after the last one.
	Next() (Record, error)
	Close() error
}

// OpenLogReader opens a session log for reading. Files with the CaptureExt
// extension are read as captures, anything else as a text log.
func OpenLogReader(path string) (RecordReader, error) {
	if filepath.Ext(path) == CaptureExt {
		return OpenCaptureReader(path)
	}
	return OpenTextLogReader(path)
}

// TextLogReader reads the records of a text log back.
type TextLogReader struct {
	sc     *bufio.Scanner
	closer io.Closer
	line   int
}

var _ RecordReader = (*TextLogReader)(nil)

// NewTextLogReader reads records from r.
func NewTextLogReader(r io.Reader) *TextLogReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &TextLogReader{sc: sc}
}

// OpenTextLogReader opens the text log at path.
func OpenTextLogReader(path string) (*TextLogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	tr := NewTextLogReader(f)
	tr.closer = f
	return tr, nil
}

func (t *TextLogReader) Next() (Record, error) {
	for t.sc.Scan() {
		t.line++
		line := strings.TrimRight(t.sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseTextRecord(line)
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %v", t.line, err)
		}
		return rec, nil
	}
	if err := t.sc.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

func (t *TextLogReader) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func parseTextRecord(line string) (Record, error) {
	switch {
	case strings.HasPrefix(line, startedMarker):
		h, err := parseHeaderLine(line)
		if err != nil {
			return Record{}, err
		}
		return Record{Kind: RecordHeader, Header: &h}, nil
	case strings.HasPrefix(line, endedMarker):
		f, err := parseFooterLine(line)
		if err != nil {
			return Record{}, err
		}
		return Record{Kind: RecordFooter, Footer: &f}, nil
	default:
		a, err := parseAttemptLine(line)
		if err != nil {
			return Record{}, err
		}
		return Record{Kind: RecordAttempt, Attempt: &a}, nil
	}
}

func parseHeaderLine(line string) (SessionHeader, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(line, startedMarker), markerSuffix)
	ts, rest, _ := strings.Cut(body, " ")
	start, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return SessionHeader{}, fmt.Errorf("malformatted session start %q: %v", ts, err)
	}
	h := SessionHeader{Start: start}
	fields, err := parseKeyValues(rest)
	if err != nil {
		return SessionHeader{}, err
	}
	h.ID = fields["session"]
	if d, ok := fields["device"]; ok {
		if h.Device, err = ParseDeviceID(d); err != nil {
			return SessionHeader{}, fmt.Errorf("malformatted device %q: %v", d, err)
		}
	}
	h.Description = fields["name"]
	if s, ok := fields["spec"]; ok {
		if h.Spec, err = ParseSweepSpec(s); err != nil {
			return SessionHeader{}, err
		}
	}
	return h, nil
}

// parseKeyValues splits `k1=v1 k2="quoted v2"` into a map.
func parseKeyValues(s string) (map[string]string, error) {
	out := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return out, nil
		}
		key, rest, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("malformatted field %q", s)
		}
		if strings.HasPrefix(rest, `"`) {
			q, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("malformatted value of %s: %v", key, err)
			}
			v, _ := strconv.Unquote(q)
			out[key] = v
			s = rest[len(q):]
			continue
		}
		v, next, _ := strings.Cut(rest, " ")
		out[key] = v
		s = next
	}
}

func parseFooterLine(line string) (SessionFooter, error) {
	var (
		verb string
		f    SessionFooter
	)
	_, err := fmt.Sscanf(line, "**** Sweep %s session=%s - Total: %d, Successful: %d ****",
		&verb, &f.ID, &f.Result.Total, &f.Result.Successful)
	if err != nil {
		return SessionFooter{}, fmt.Errorf("malformatted footer %q: %v", line, err)
	}
	switch verb {
	case "completed":
	case "stopped":
		f.Result.Cancelled = true
	default:
		return SessionFooter{}, fmt.Errorf("malformatted footer %q: unknown state %q", line, verb)
	}
	return f, nil
}

func parseAttemptLine(line string) (Attempt, error) {
	parts := strings.SplitN(line, fieldSep, 3)
	if len(parts) != 3 {
		return Attempt{}, fmt.Errorf("malformatted attempt %q", line)
	}
	var (
		a   Attempt
		err error
	)
	if a.Time, err = time.ParseInLocation(attemptTimeLayout, parts[0], time.Local); err != nil {
		return Attempt{}, fmt.Errorf("malformatted timestamp %q: %v", parts[0], err)
	}
	r := &a.Request
	if _, err := fmt.Sscanf(parts[1], "bmRequestType: 0x%x bRequest: 0x%x wValue: 0x%x wIndex: 0x%x wLength: 0x%x",
		&r.RequestType, &r.Request, &r.Value, &r.Index, &r.Length); err != nil {
		return Attempt{}, fmt.Errorf("malformatted request %q: %v", parts[1], err)
	}
	if a.Outcome, err = parseOutcome(parts[2]); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func parseOutcome(s string) (Outcome, error) {
	if msg, ok := strings.CutPrefix(s, "Error: "); ok {
		return Outcome{Kind: OutcomeTransportFailure, Message: msg}, nil
	}
	raw, ok := strings.CutPrefix(s, "Received: ")
	if !ok {
		return Outcome{}, fmt.Errorf("malformatted outcome %q", s)
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	payload, err := hex.DecodeString(strings.ReplaceAll(raw, " ", ""))
	if err != nil {
		return Outcome{}, fmt.Errorf("malformatted payload %q: %v", raw, err)
	}
	return Success(payload), nil
}
