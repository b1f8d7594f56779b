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

package usbdev

import (
	"errors"
	"testing"
	"time"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
	"github.com/trapedev/fixed-FrisbeeLite/logger"
)

type fakeConfig struct {
	closed bool
}

func (c *fakeConfig) Close() error {
	c.closed = true
	return nil
}

type fakeDevice struct {
	detachErr error
	resetErr  error
	cfgErr    error
	nums      []int

	// reply is copied into the data stage of every control transfer.
	reply   []byte
	ctrlErr error

	resets  int
	cfgNum  int
	cfg     *fakeConfig
	timeout time.Duration
	closed  bool
	last    frisbee.ControlRequest
}

func (d *fakeDevice) SetAutoDetach(bool) error { return d.detachErr }

func (d *fakeDevice) Reset() error {
	d.resets++
	return d.resetErr
}

func (d *fakeDevice) configs() []int { return d.nums }

func (d *fakeDevice) setConfig(n int) (closer, error) {
	if d.cfgErr != nil {
		return nil, d.cfgErr
	}
	d.cfgNum = n
	d.cfg = &fakeConfig{}
	return d.cfg, nil
}

func (d *fakeDevice) setControlTimeout(t time.Duration) { d.timeout = t }

func (d *fakeDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	d.last = frisbee.ControlRequest{RequestType: rType, Request: request, Value: val, Index: idx, Length: uint16(len(data))}
	if d.ctrlErr != nil {
		return 0, d.ctrlErr
	}
	return copy(data, d.reply), nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

type fakeBackend struct {
	dev     *fakeDevice
	openErr error
	closed  bool
}

func (b *fakeBackend) open(vid, pid gousb.ID) (device, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	if b.dev == nil {
		return nil, nil
	}
	return b.dev, nil
}

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

var testID = frisbee.DeviceID{Vendor: 0x05ac, Product: 0x1297}

func TestConnect(t *testing.T) {
	dev := &fakeDevice{nums: []int{2, 1}}
	tr := newTransport(&fakeBackend{dev: dev}, WithLogger(logger.Nop()), WithTimeout(250*time.Millisecond))

	h, err := tr.Connect(testID)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.cfgNum, "lowest configuration is selected")
	assert.Equal(t, 1, dev.resets)
	assert.Equal(t, 250*time.Millisecond, dev.timeout)

	require.NoError(t, h.Close())
	assert.True(t, dev.cfg.closed)
	assert.True(t, dev.closed)
	assert.NoError(t, h.Close(), "second Close")
}

func TestConnectWarnsAndContinues(t *testing.T) {
	dev := &fakeDevice{
		nums:      []int{1},
		detachErr: gousb.ErrorNotSupported,
		resetErr:  gousb.ErrorNotFound,
	}
	log := new(logger.MockLogger)
	log.On("With", "device", testID.String()).Return(log)
	log.On("Warn", "could not enable kernel driver detach, continuing", mock.Anything).Once()
	log.On("Warn", "device reset failed, continuing", mock.Anything).Once()
	log.On("Info", "device configured", mock.Anything).Once()

	tr := newTransport(&fakeBackend{dev: dev}, WithLogger(log))
	h, err := tr.Connect(testID)
	require.NoError(t, err)
	defer h.Close()
	log.AssertExpectations(t)
}

func TestConnectWithoutReset(t *testing.T) {
	dev := &fakeDevice{nums: []int{1}}
	tr := newTransport(&fakeBackend{dev: dev}, WithLogger(logger.Nop()), WithReset(false))
	h, err := tr.Connect(testID)
	require.NoError(t, err)
	defer h.Close()
	assert.Zero(t, dev.resets)
}

func TestConnectErrors(t *testing.T) {
	tests := []struct {
		desc string
		b    *fakeBackend
		want frisbee.TransportErrorKind
	}{
		{"no device", &fakeBackend{}, frisbee.TransportNotFound},
		{"open busy", &fakeBackend{openErr: gousb.ErrorBusy}, frisbee.TransportDriverBusy},
		{"open access", &fakeBackend{openErr: gousb.ErrorAccess}, frisbee.TransportConfigFailed},
		{"no configs", &fakeBackend{dev: &fakeDevice{}}, frisbee.TransportConfigFailed},
		{"config busy", &fakeBackend{dev: &fakeDevice{nums: []int{1}, cfgErr: gousb.ErrorBusy}}, frisbee.TransportDriverBusy},
		{"config io", &fakeBackend{dev: &fakeDevice{nums: []int{1}, cfgErr: gousb.ErrorIO}}, frisbee.TransportConfigFailed},
	}
	for _, tc := range tests {
		tr := newTransport(tc.b, WithLogger(logger.Nop()))
		h, err := tr.Connect(testID)
		if h != nil {
			t.Errorf("%s: Connect returned a handle with error %v", tc.desc, err)
		}
		var te *frisbee.TransportError
		if !errors.As(err, &te) {
			t.Errorf("%s: Connect error %v is not a *TransportError", tc.desc, err)
			continue
		}
		if got, want := te.Kind, tc.want; got != want {
			t.Errorf("%s: error kind: got %s, want %s", tc.desc, got, want)
		}
		if tc.b.dev != nil && !tc.b.dev.closed {
			t.Errorf("%s: device left open after failed connect", tc.desc)
		}
	}
}

func TestControlTransfer(t *testing.T) {
	dev := &fakeDevice{nums: []int{1}, reply: []byte{0x12, 0x01, 0x00, 0x02}}
	tr := newTransport(&fakeBackend{dev: dev}, WithLogger(logger.Nop()))
	h, err := tr.Connect(testID)
	require.NoError(t, err)
	defer h.Close()

	in := frisbee.ControlRequest{RequestType: 0x80, Request: 0x06, Value: 0x0100, Length: 0x12}
	got, err := h.ControlTransfer(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x01, 0x00, 0x02}, got, "IN returns the bytes actually read")
	assert.Equal(t, in, dev.last)

	out := frisbee.ControlRequest{RequestType: 0x00, Request: 0x09, Value: 0x0001, Length: 4}
	got, err = h.ControlTransfer(out)
	require.NoError(t, err)
	assert.Nil(t, got, "OUT returns no payload")

	dev.ctrlErr = gousb.ErrorPipe
	_, err = h.ControlTransfer(in)
	var te *frisbee.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, frisbee.TransportTransferFailed, te.Kind)
	assert.ErrorIs(t, err, gousb.ErrorPipe)
}

func TestControlTransferAfterClose(t *testing.T) {
	dev := &fakeDevice{nums: []int{1}}
	tr := newTransport(&fakeBackend{dev: dev}, WithLogger(logger.Nop()))
	h, err := tr.Connect(testID)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.ControlTransfer(frisbee.ControlRequest{RequestType: 0x80, Length: 1})
	assert.Error(t, err)
}

func TestTransportClose(t *testing.T) {
	b := &fakeBackend{}
	tr := newTransport(b)
	require.NoError(t, tr.Close())
	assert.True(t, b.closed)
}
