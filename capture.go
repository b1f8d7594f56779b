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
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureExt is the file extension of capture files.
const CaptureExt = ".clog"

var (
	captureEncMode cbor.EncMode
	captureDecMode cbor.DecMode
)

func init() {
	var err error
	captureEncMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}
	captureDecMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// captureRecord is the on-disk form of a Record. Integer keys keep
// captures of long sweeps compact.
type captureRecord struct {
	Kind        RecordKind `cbor:"1,keyasint"`
	Time        time.Time  `cbor:"2,keyasint"`
	Session     string     `cbor:"3,keyasint,omitempty"`
	Vendor      uint16     `cbor:"4,keyasint,omitempty"`
	Product     uint16     `cbor:"5,keyasint,omitempty"`
	Description string     `cbor:"6,keyasint,omitempty"`
	Spec        string     `cbor:"7,keyasint,omitempty"`

	RequestType uint8       `cbor:"8,keyasint,omitempty"`
	Request     uint8       `cbor:"9,keyasint,omitempty"`
	Value       uint16      `cbor:"10,keyasint,omitempty"`
	Index       uint16      `cbor:"11,keyasint,omitempty"`
	Length      uint16      `cbor:"12,keyasint,omitempty"`
	Outcome     OutcomeKind `cbor:"13,keyasint,omitempty"`
	Payload     []byte      `cbor:"14,keyasint,omitempty"`
	Message     string      `cbor:"15,keyasint,omitempty"`

	Total      uint64 `cbor:"16,keyasint,omitempty"`
	Successful uint64 `cbor:"17,keyasint,omitempty"`
	Cancelled  bool   `cbor:"18,keyasint,omitempty"`
}

func toCapture(r Record) captureRecord {
	c := captureRecord{Kind: r.Kind}
	switch r.Kind {
	case RecordHeader:
		h := r.Header
		c.Time, c.Session = h.Start, h.ID
		c.Vendor, c.Product = uint16(h.Device.Vendor), uint16(h.Device.Product)
		c.Description, c.Spec = h.Description, h.Spec.String()
	case RecordAttempt:
		a := r.Attempt
		c.Time = a.Time
		c.RequestType, c.Request = a.Request.RequestType, a.Request.Request
		c.Value, c.Index, c.Length = a.Request.Value, a.Request.Index, a.Request.Length
		c.Outcome, c.Payload, c.Message = a.Outcome.Kind, a.Outcome.Payload, a.Outcome.Message
	case RecordFooter:
		f := r.Footer
		c.Time, c.Session = f.End, f.ID
		c.Total, c.Successful, c.Cancelled = f.Result.Total, f.Result.Successful, f.Result.Cancelled
	}
	return c
}

func (c captureRecord) record() (Record, error) {
	switch c.Kind {
	case RecordHeader:
		spec, err := ParseSweepSpec(c.Spec)
		if err != nil {
			return Record{}, err
		}
		return Record{Kind: RecordHeader, Header: &SessionHeader{
			ID:          c.Session,
			Start:       c.Time,
			Device:      DeviceID{Vendor: ID(c.Vendor), Product: ID(c.Product)},
			Description: c.Description,
			Spec:        spec,
		}}, nil
	case RecordAttempt:
		return Record{Kind: RecordAttempt, Attempt: &Attempt{
			Time: c.Time,
			Request: ControlRequest{
				RequestType: c.RequestType,
				Request:     c.Request,
				Value:       c.Value,
				Index:       c.Index,
				Length:      c.Length,
			},
			Outcome: Outcome{Kind: c.Outcome, Payload: c.Payload, Message: c.Message},
		}}, nil
	case RecordFooter:
		return Record{Kind: RecordFooter, Footer: &SessionFooter{
			ID:     c.Session,
			End:    c.Time,
			Result: SweepResult{Total: c.Total, Successful: c.Successful, Cancelled: c.Cancelled},
		}}, nil
	default:
		return Record{}, fmt.Errorf("unknown capture record kind %d", c.Kind)
	}
}

// CaptureLog is a SessionLog writing CBOR records, one per call, for
// machine analysis. Like TextLog it only ever appends.
type CaptureLog struct {
	f   *os.File
	enc *cbor.Encoder
}

var _ SessionLog = (*CaptureLog)(nil)

// OpenCaptureLog opens path for appending, creating it if needed.
func OpenCaptureLog(path string) (*CaptureLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &CaptureLog{f: f, enc: captureEncMode.NewEncoder(f)}, nil
}

func (l *CaptureLog) write(r Record) error {
	if l.f == nil {
		return os.ErrClosed
	}
	return l.enc.Encode(toCapture(r))
}

func (l *CaptureLog) WriteHeader(h SessionHeader) error {
	return l.write(Record{Kind: RecordHeader, Header: &h})
}

func (l *CaptureLog) Append(a Attempt) error {
	return l.write(Record{Kind: RecordAttempt, Attempt: &a})
}

func (l *CaptureLog) WriteFooter(f SessionFooter) error {
	if err := l.write(Record{Kind: RecordFooter, Footer: &f}); err != nil {
		return err
	}
	return l.f.Sync()
}

// Close closes the file. It is safe to call Close more than once.
func (l *CaptureLog) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// CaptureReader reads the records of a capture file.
type CaptureReader struct {
	dec    *cbor.Decoder
	closer io.Closer
}

var _ RecordReader = (*CaptureReader)(nil)

// NewCaptureReader reads capture records from r.
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: captureDecMode.NewDecoder(r)}
}

// OpenCaptureReader opens the capture file at path.
func OpenCaptureReader(path string) (*CaptureReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	cr := NewCaptureReader(f)
	cr.closer = f
	return cr, nil
}

func (c *CaptureReader) Next() (Record, error) {
	var cr captureRecord
	if err := c.dec.Decode(&cr); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	return cr.record()
}

func (c *CaptureReader) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
