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
	"fmt"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// Vendor returns the name of the vendor id.
func (db *DB) Vendor(id frisbee.ID) (string, bool) {
	if db == nil {
		return "", false
	}
	name, ok := db.vendors[id]
	return name, ok
}

// Product returns the name of the product id.Product of vendor id.Vendor.
func (db *DB) Product(id frisbee.DeviceID) (string, bool) {
	if db == nil {
		return "", false
	}
	name, ok := db.products[id]
	return name, ok
}

// Describe returns "Product (Vendor)" for a known device. A nil DB knows
// no devices.
func (db *DB) Describe(id frisbee.DeviceID) string {
	vendor, ok := db.Vendor(id.Vendor)
	if !ok {
		return fmt.Sprintf("Unknown %s", id)
	}
	if product, ok := db.Product(id); ok {
		return fmt.Sprintf("%s (%s)", product, vendor)
	}
	return fmt.Sprintf("Unknown (%s)", vendor)
}
