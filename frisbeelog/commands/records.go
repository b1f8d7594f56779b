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

// Package commands implements the subcommands of frisbeelog.
package commands

import (
	"errors"
	"fmt"
	"io"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// sessionRecord is a record with the session it belongs to. Attempts of
// text logs carry no session ID, so it is taken from the last header.
type sessionRecord struct {
	frisbee.Record
	Session string
}

// walk calls fn for every record of the log at path.
func walk(path string, fn func(sessionRecord) error) error {
	reader, err := frisbee.OpenLogReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var session string
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		switch rec.Kind {
		case frisbee.RecordHeader:
			session = rec.Header.ID
		case frisbee.RecordFooter:
			session = rec.Footer.ID
		}
		if err := fn(sessionRecord{Record: rec, Session: session}); err != nil {
			return err
		}
	}
}
