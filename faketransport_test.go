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
	"sync"
)

// fakeDevices are the devices known to fakeTransport.
var fakeDevices = map[DeviceID]bool{
	{Vendor: 0x05ac, Product: 0x1297}: true,
	{Vendor: 0x1d6b, Product: 0x0002}: true,
}

var errFakePipe = errors.New("libusb: pipe error [code -9]")

// fakeTransport pretends to be libusb with the devices in fakeDevices
// connected. IN requests are answered with wLength bytes, the first two
// being bRequest and the low byte of wValue. Requests for which fail
// returns true fail with errFakePipe.
type fakeTransport struct {
	fail func(ControlRequest) bool
	// onTransfer, if set, is called after the n-th transfer (1-based),
	// before it returns.
	onTransfer func(n int, req ControlRequest)
	// connectErr, if set, fails every Connect.
	connectErr error
	// empty makes every successful transfer return no data.
	empty bool

	mu       sync.Mutex
	connects int
	sent     []ControlRequest
	handles  []*fakeHandle
}

func (f *fakeTransport) Connect(id DeviceID) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	if !fakeDevices[id] {
		return nil, &TransportError{Kind: TransportNotFound, Op: "open"}
	}
	h := &fakeHandle{t: f}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeTransport) requests() []ControlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ControlRequest(nil), f.sent...)
}

type fakeHandle struct {
	t      *fakeTransport
	closed bool
}

func (h *fakeHandle) ControlTransfer(req ControlRequest) ([]byte, error) {
	f := h.t
	f.mu.Lock()
	if h.closed {
		f.mu.Unlock()
		return nil, &TransportError{Kind: TransportTransferFailed, Op: "control", Err: errors.New("device closed")}
	}
	f.sent = append(f.sent, req)
	n := len(f.sent)
	f.mu.Unlock()

	if f.onTransfer != nil {
		f.onTransfer(n, req)
	}
	if f.fail != nil && f.fail(req) {
		return nil, &TransportError{Kind: TransportTransferFailed, Op: "control", Err: errFakePipe}
	}
	if f.empty || !RequestType(req.RequestType).In() {
		return nil, nil
	}
	buf := make([]byte, req.Length)
	copy(buf, []byte{req.Request, byte(req.Value)})
	return buf, nil
}

func (h *fakeHandle) Close() error {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	h.closed = true
	return nil
}

// failingLog is a MemoryLog whose Append fails from the failAt-th call on.
type failingLog struct {
	MemoryLog
	failAt  int
	appends int
}

var errDiskFull = errors.New("no space left on device")

func (l *failingLog) Append(a Attempt) error {
	l.appends++
	if l.appends >= l.failAt {
		return errDiskFull
	}
	return l.MemoryLog.Append(a)
}
