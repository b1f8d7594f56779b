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
	"testing"
)

func TestParseDeviceID(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in   string
		want DeviceID
	}{
		{"1d6b:0002", DeviceID{Vendor: 0x1d6b, Product: 0x0002}},
		{"05AC:1297", DeviceID{Vendor: 0x05ac, Product: 0x1297}},
		{"0x05ac:0x1297", DeviceID{Vendor: 0x05ac, Product: 0x1297}},
	} {
		got, err := ParseDeviceID(tc.in)
		if err != nil {
			t.Errorf("ParseDeviceID(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDeviceID(%q): got %s, want %s", tc.in, got, tc.want)
		}
		if got.String() != tc.want.String() {
			t.Errorf("%v.String(): got %q, want %q", got, got.String(), tc.want.String())
		}
	}
	for _, in := range []string{"", "1d6b", "1d6b:0002:1", "xyz:0002", "1d6b:10000"} {
		if got, err := ParseDeviceID(in); err == nil {
			t.Errorf("ParseDeviceID(%q): got %s, want error", in, got)
		}
	}
}

func TestRequestTypeString(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		rt   RequestType
		want string
	}{
		{0x80, "IN|standard|device"},
		{0x00, "OUT|standard|device"},
		{0xc0, "IN|vendor|device"},
		{0x21, "OUT|class|interface"},
		{0xa2, "IN|class|endpoint"},
		{0x63, "OUT|reserved|other"},
		{0x9f, "IN|standard|recipient(31)"},
	} {
		if got := tc.rt.String(); got != tc.want {
			t.Errorf("RequestType(%#02x).String(): got %q, want %q", uint8(tc.rt), got, tc.want)
		}
	}
}

func TestControlRequest(t *testing.T) {
	t.Parallel()
	req := ControlRequest{RequestType: 0x80, Request: 0x06, Value: 0x0100, Index: 0, Length: 0x12}
	if got, want := req.String(), "bmRequestType: 0x80 bRequest: 0x06 wValue: 0x0100 wIndex: 0x0000 wLength: 0x0012"; got != want {
		t.Errorf("String(): got %q, want %q", got, want)
	}
	if got, want := req.RequestName(), "GET_DESCRIPTOR"; got != want {
		t.Errorf("RequestName(): got %q, want %q", got, want)
	}
	vendor := ControlRequest{RequestType: 0xc0, Request: 0x06}
	if got := vendor.RequestName(); got != "" {
		t.Errorf("vendor RequestName(): got %q, want empty", got)
	}
}
