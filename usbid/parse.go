// Copyright 2013 Google Inc.  All rights reserved.
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

package usbid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// Parse reads a usb.ids database. Only the vendor list is kept: vendor
// lines and the product lines indented once below them. Interface lines
// and the other sections (classes, languages, HID usages, ...) are skipped.
func Parse(r io.Reader) (*DB, error) {
	db := &DB{
		vendors:  make(map[frisbee.ID]string, 2800),
		products: make(map[frisbee.DeviceID]string, 20000),
	}

	var (
		vendor   frisbee.ID
		inVendor bool
		// Set once the first vendor line is seen. The vendor list comes
		// first, so a product line before it is an error.
		seenVendor bool
	)
	lines := bufio.NewScanner(r)
	for lineno := 1; lines.Scan(); lineno++ {
		line := lines.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		depth := len(line) - len(strings.TrimLeft(line, "\t"))
		switch depth {
		case 0:
			head, name, err := splitEntry(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", lineno, err)
			}
			// "C 09", "L 0409", "HUT 01": a keyword starts another section.
			if strings.Contains(head, " ") {
				inVendor = false
				continue
			}
			id, err := parseID(head)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", lineno, err)
			}
			vendor, inVendor, seenVendor = id, true, true
			db.vendors[id] = name
		case 1:
			if !inVendor {
				if !seenVendor {
					return nil, fmt.Errorf("line %d: product line without vendor line", lineno)
				}
				continue
			}
			head, name, err := splitEntry(line[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", lineno, err)
			}
			id, err := parseID(head)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", lineno, err)
			}
			db.products[frisbee.DeviceID{Vendor: vendor, Product: id}] = name
		}
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

// splitEntry splits "05ac  Apple, Inc." at the two-space separator.
func splitEntry(s string) (head, name string, err error) {
	head, name, ok := strings.Cut(s, "  ")
	if !ok || name == "" {
		return "", "", fmt.Errorf("malformatted line %q", s)
	}
	return head, name, nil
}

func parseID(s string) (frisbee.ID, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("malformatted id %q", s)
	}
	return frisbee.ID(v), nil
}
