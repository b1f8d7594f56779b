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
	"reflect"
	"strings"
	"testing"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

func TestParse(t *testing.T) {
	input := `
# Skip comment
abcd  Vendor One
	0123  Product One
	0124  Product Two
efef  Vendor Two
	0aba  Product
		12  Interface One
		24  Interface Two
	0abb  Product
		12  Interface

C 02  Communications
	01  Direct Line
	02  Abstract (modem)
		00  None
L 0409  English (US)
HUT 01  Generic Desktop Controls
	000  Undefined
	001  Pointer
`
	db, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantVendors := map[frisbee.ID]string{
		0xabcd: "Vendor One",
		0xefef: "Vendor Two",
	}
	wantProducts := map[frisbee.DeviceID]string{
		{Vendor: 0xabcd, Product: 0x0123}: "Product One",
		{Vendor: 0xabcd, Product: 0x0124}: "Product Two",
		{Vendor: 0xefef, Product: 0x0aba}: "Product",
		{Vendor: 0xefef, Product: 0x0abb}: "Product",
	}
	if got, want := db.vendors, wantVendors; !reflect.DeepEqual(got, want) {
		t.Errorf("vendors: got %v, want %v", got, want)
	}
	if got, want := db.products, wantProducts; !reflect.DeepEqual(got, want) {
		t.Errorf("products: got %v, want %v", got, want)
	}
	if got, want := db.Len(), 2; got != want {
		t.Errorf("Len: got %d, want %d", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		desc  string
		input string
	}{
		{"product without vendor", "\t0123  Product\n"},
		{"bad vendor id", "xyzw  Vendor\n"},
		{"missing name", "abcd\n"},
		{"bad product id", "abcd  Vendor\n\t01g3  Product\n"},
		{"product missing name", "abcd  Vendor\n\t0123\n"},
	}
	for _, tc := range tests {
		if _, err := Parse(strings.NewReader(tc.input)); err == nil {
			t.Errorf("%s: Parse(%q): got nil error, want error", tc.desc, tc.input)
		}
	}
}
