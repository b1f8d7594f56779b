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

// Package usbid names USB vendors and products using a database in
// the usb.ids format maintained at http://www.linux-usb.org/usb.ids.
//
// Nothing is embedded: the database is read from the copy shipped by the
// host's hwdata or usbutils package, from a file, or from a URL.
package usbid

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

const (
	// LinuxUsbDotOrg is one source of files in the format used by this package.
	LinuxUsbDotOrg = "http://www.linux-usb.org/usb.ids"
)

// SystemPaths are the locations searched by LoadSystem, in order.
var SystemPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/usr/share/misc/usb.ids",
	"/usr/share/usb.ids",
	"/var/lib/usbutils/usb.ids",
}

// DB is a parsed usb.ids database. The zero DB knows no names.
type DB struct {
	vendors  map[frisbee.ID]string
	products map[frisbee.DeviceID]string
	// Source is the path or URL the database was read from.
	Source string
}

// Len returns the number of known vendors.
func (db *DB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.vendors)
}

// Load reads the database from source, which is an http(s) URL or a file
// path.
func Load(source string) (*DB, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return LoadFromURL(source)
	}
	return LoadFile(source)
}

func LoadFile(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	db, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	db.Source = path
	return db, nil
}

// LoadSystem reads the first database found in SystemPaths. It returns an
// error wrapping fs.ErrNotExist if there is none.
func LoadSystem() (*DB, error) {
	for _, p := range SystemPaths {
		db, err := LoadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return db, err
	}
	return nil, fmt.Errorf("no usb.ids database in %v: %w", SystemPaths, fs.ErrNotExist)
}

// LoadFromURL downloads a database from the given URL.
func LoadFromURL(url string) (*DB, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	db, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	db.Source = url
	return db, nil
}
