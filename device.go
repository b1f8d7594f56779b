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
	"fmt"
	"strconv"
	"strings"
)

// ID represents a vendor or product ID.
type ID uint16

// String returns a hexadecimal ID.
func (id ID) String() string {
	return fmt.Sprintf("%04x", int(id))
}

// DeviceID identifies the target device of a session.
type DeviceID struct {
	Vendor  ID
	Product ID
}

// String returns the VID:PID pair, e.g. "05ac:1297".
func (d DeviceID) String() string {
	return fmt.Sprintf("%s:%s", d.Vendor, d.Product)
}

// ParseDeviceID parses a VID:PID pair of two hexadecimal 16-bit numbers
// separated by a colon, e.g. 1d6b:0002.
func ParseDeviceID(vidPid string) (DeviceID, error) {
	s := strings.Split(vidPid, ":")
	if len(s) != 2 {
		return DeviceID{}, fmt.Errorf("want VID:PID, two 16-bit hex numbers separated by colon, e.g. 1d6b:0002")
	}
	vid, err := strconv.ParseUint(strings.TrimPrefix(s[0], "0x"), 16, 16)
	if err != nil {
		return DeviceID{}, fmt.Errorf("VID must be a hexadecimal 16-bit number, e.g. 1d6b")
	}
	pid, err := strconv.ParseUint(strings.TrimPrefix(s[1], "0x"), 16, 16)
	if err != nil {
		return DeviceID{}, fmt.Errorf("PID must be a hexadecimal 16-bit number, e.g. 0002")
	}
	return DeviceID{Vendor: ID(vid), Product: ID(pid)}, nil
}

// RequestType is the bmRequestType field of a control setup packet.
type RequestType uint8

// Fields of bmRequestType.
const (
	RequestDirectionIn RequestType = 0x80

	RequestTypeMask     RequestType = 0x60
	RequestTypeStandard RequestType = 0x00
	RequestTypeClass    RequestType = 0x20
	RequestTypeVendor   RequestType = 0x40

	RequestRecipientMask      RequestType = 0x1f
	RequestRecipientDevice    RequestType = 0x00
	RequestRecipientInterface RequestType = 0x01
	RequestRecipientEndpoint  RequestType = 0x02
	RequestRecipientOther     RequestType = 0x03
)

// In reports whether the data stage flows from the device to the host.
func (rt RequestType) In() bool {
	return rt&RequestDirectionIn != 0
}

// String decodes the request type, e.g. "IN|standard|device".
func (rt RequestType) String() string {
	dir := "OUT"
	if rt.In() {
		dir = "IN"
	}
	var kind string
	switch rt & RequestTypeMask {
	case RequestTypeStandard:
		kind = "standard"
	case RequestTypeClass:
		kind = "class"
	case RequestTypeVendor:
		kind = "vendor"
	default:
		kind = "reserved"
	}
	var recipient string
	switch rt & RequestRecipientMask {
	case RequestRecipientDevice:
		recipient = "device"
	case RequestRecipientInterface:
		recipient = "interface"
	case RequestRecipientEndpoint:
		recipient = "endpoint"
	case RequestRecipientOther:
		recipient = "other"
	default:
		recipient = fmt.Sprintf("recipient(%d)", int(rt&RequestRecipientMask))
	}
	return dir + "|" + kind + "|" + recipient
}

var standardRequests = map[uint8]string{
	0x00: "GET_STATUS",
	0x01: "CLEAR_FEATURE",
	0x03: "SET_FEATURE",
	0x05: "SET_ADDRESS",
	0x06: "GET_DESCRIPTOR",
	0x07: "SET_DESCRIPTOR",
	0x08: "GET_CONFIGURATION",
	0x09: "SET_CONFIGURATION",
	0x0a: "GET_INTERFACE",
	0x0b: "SET_INTERFACE",
	0x0c: "SYNCH_FRAME",
}

// ControlRequest holds the setup fields of a single control transfer.
type ControlRequest struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// RequestName returns the name of a standard request, or an empty string
// for class, vendor and unknown requests.
func (r ControlRequest) RequestName() string {
	if RequestType(r.RequestType)&RequestTypeMask != RequestTypeStandard {
		return ""
	}
	return standardRequests[r.Request]
}

// String formats the setup fields in the session log field order.
func (r ControlRequest) String() string {
	return fmt.Sprintf("bmRequestType: 0x%02x bRequest: 0x%02x wValue: 0x%04x wIndex: 0x%04x wLength: 0x%04x",
		r.RequestType, r.Request, r.Value, r.Index, r.Length)
}
