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
)

// Transport opens device handles. The usbdev package provides the libusb
// implementation.
type Transport interface {
	// Connect opens, configures and claims the device identified by id.
	// Errors should be *TransportError values so the engine can classify
	// them.
	Connect(id DeviceID) (Handle, error)
}

// Handle is an open device. A Handle is used by one goroutine at a time.
type Handle interface {
	// ControlTransfer performs one control transfer and returns the data
	// stage of an IN request. Any timeout is the Handle's own policy.
	ControlTransfer(req ControlRequest) ([]byte, error)
	// Close releases the device.
	Close() error
}

// TransportErrorKind classifies transport failures.
type TransportErrorKind uint8

const (
	// TransportNotFound means no device matched the VID/PID.
	TransportNotFound TransportErrorKind = iota + 1
	// TransportDriverBusy means the device is claimed by another driver.
	TransportDriverBusy
	// TransportConfigFailed means the device could not be configured.
	TransportConfigFailed
	// TransportTransferFailed means a single control transfer failed.
	TransportTransferFailed
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportNotFound:
		return "not found"
	case TransportDriverBusy:
		return "driver busy"
	case TransportConfigFailed:
		return "configuration failed"
	case TransportTransferFailed:
		return "transfer failed"
	default:
		return fmt.Sprintf("TransportErrorKind(%d)", int(k))
	}
}

// TransportError is returned by Transport and Handle implementations.
type TransportError struct {
	Kind TransportErrorKind
	// Op names the failed operation, e.g. "open" or "control".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConnectReason classifies a failed Connect.
type ConnectReason uint8

const (
	DeviceNotFound ConnectReason = iota + 1
	ConfigurationFailed
)

func (r ConnectReason) String() string {
	switch r {
	case DeviceNotFound:
		return "device not found"
	case ConfigurationFailed:
		return "configuration failed"
	default:
		return fmt.Sprintf("ConnectReason(%d)", int(r))
	}
}

// ConnectError is returned when the engine cannot obtain a device handle.
// It is fatal to the session: no attempts are made.
type ConnectError struct {
	Device DeviceID
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect vid=%s,pid=%s: %s: %v", e.Device.Vendor, e.Device.Product, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func newConnectError(id DeviceID, err error) *ConnectError {
	reason := ConfigurationFailed
	var te *TransportError
	if errors.As(err, &te) && te.Kind == TransportNotFound {
		reason = DeviceNotFound
	}
	return &ConnectError{Device: id, Reason: reason, Err: err}
}

// ErrBusy is returned when an engine operation is started while another
// one holds the device.
var ErrBusy = errors.New("engine busy: the device is in use by another operation")
