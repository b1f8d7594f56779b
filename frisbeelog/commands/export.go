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
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return Export(path, format, w)
}

// Export writes the records of the log at path to w as "jsonl" or "csv".
func Export(path, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(path, w)
	case "csv":
		return exportCSV(path, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// exportRecord is the JSON form of a record.
type exportRecord struct {
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Session string    `json:"session,omitempty"`

	Device      string `json:"device,omitempty"`
	Description string `json:"description,omitempty"`
	Spec        string `json:"spec,omitempty"`

	RequestType *uint8  `json:"bmRequestType,omitempty"`
	Request     *uint8  `json:"bRequest,omitempty"`
	Value       *uint16 `json:"wValue,omitempty"`
	Index       *uint16 `json:"wIndex,omitempty"`
	Length      *uint16 `json:"wLength,omitempty"`
	Outcome     string  `json:"outcome,omitempty"`
	Payload     string  `json:"payload,omitempty"`
	Error       string  `json:"error,omitempty"`

	Total      *uint64 `json:"total,omitempty"`
	Successful *uint64 `json:"successful,omitempty"`
	Cancelled  bool    `json:"cancelled,omitempty"`
}

func toExport(r sessionRecord) exportRecord {
	e := exportRecord{Kind: r.Kind.String(), Session: r.Session}
	switch r.Kind {
	case frisbee.RecordHeader:
		h := r.Header
		e.Time = h.Start
		e.Device, e.Description, e.Spec = h.Device.String(), h.Description, h.Spec.String()
	case frisbee.RecordAttempt:
		a := r.Attempt
		req := a.Request
		e.Time = a.Time
		e.RequestType, e.Request = &req.RequestType, &req.Request
		e.Value, e.Index, e.Length = &req.Value, &req.Index, &req.Length
		e.Outcome = a.Outcome.Kind.String()
		if a.Outcome.OK() {
			e.Payload = hex.EncodeToString(a.Outcome.Payload)
		} else {
			e.Error = a.Outcome.Message
		}
	case frisbee.RecordFooter:
		f := r.Footer
		e.Time = f.End
		e.Total, e.Successful = &f.Result.Total, &f.Result.Successful
		e.Cancelled = f.Result.Cancelled
	}
	return e
}

func exportJSONL(path string, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return walk(path, func(r sessionRecord) error {
		if err := encoder.Encode(toExport(r)); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		return nil
	})
}

// exportCSV writes one row per attempt. Headers and footers only supply
// the session column.
func exportCSV(path string, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"time", "session", "bmRequestType", "bRequest", "wValue", "wIndex", "wLength", "outcome", "payload", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := walk(path, func(r sessionRecord) error {
		if r.Kind != frisbee.RecordAttempt {
			return nil
		}
		a := r.Attempt
		row := []string{
			a.Time.Format(time.RFC3339Nano),
			r.Session,
			"0x" + strconv.FormatUint(uint64(a.Request.RequestType), 16),
			"0x" + strconv.FormatUint(uint64(a.Request.Request), 16),
			"0x" + strconv.FormatUint(uint64(a.Request.Value), 16),
			"0x" + strconv.FormatUint(uint64(a.Request.Index), 16),
			strconv.FormatUint(uint64(a.Request.Length), 10),
			a.Outcome.Kind.String(),
			hex.EncodeToString(a.Outcome.Payload),
			a.Outcome.Message,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
