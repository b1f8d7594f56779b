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

// Package usbdev implements frisbee.Transport on libusb through gousb.
//
// Connecting follows the usual sequence for a device that may be bound to
// a kernel driver: enable automatic kernel driver detach, reset the device,
// then select its first configuration. Detach and reset failures are logged
// and ignored; a configuration failure fails the connect.
package usbdev

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/gousb"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
	"github.com/trapedev/fixed-FrisbeeLite/logger"
)

// DefaultTimeout bounds each control transfer unless WithTimeout says
// otherwise.
const DefaultTimeout = time.Second

// device is the part of *gousb.Device the transport uses.
type device interface {
	SetAutoDetach(autodetach bool) error
	Reset() error
	// configs returns the configuration numbers in the device descriptor.
	configs() []int
	setConfig(cfgNum int) (closer, error)
	setControlTimeout(d time.Duration)
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Close() error
}

type closer interface {
	Close() error
}

// backend opens devices. It is libusb in production and a fake in tests.
type backend interface {
	open(vid, pid gousb.ID) (device, error)
	Close() error
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger. The default is logger.Default().
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithTimeout sets the control transfer timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// WithReset controls whether Connect resets the device before configuring
// it. The default is true.
func WithReset(reset bool) Option {
	return func(t *Transport) { t.reset = reset }
}

// WithDebug sets the libusb debug level, 0 (off) to 4 (debug).
func WithDebug(level int) Option {
	return func(t *Transport) { t.debug = level }
}

// Transport opens devices through a libusb context. A Transport must be
// closed after all of its handles.
type Transport struct {
	b       backend
	log     logger.Logger
	timeout time.Duration
	reset   bool
	debug   int
}

var _ frisbee.Transport = (*Transport)(nil)

// New creates a libusb context and returns a Transport on it.
func New(opts ...Option) *Transport {
	t := newTransport(nil, opts...)
	ctx := gousb.NewContext()
	if t.debug > 0 {
		ctx.Debug(t.debug)
	}
	t.b = &libusb{ctx: ctx}
	return t
}

func newTransport(b backend, opts ...Option) *Transport {
	t := &Transport{
		b:       b,
		log:     logger.Default(),
		timeout: DefaultTimeout,
		reset:   true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Close releases the libusb context.
func (t *Transport) Close() error {
	return t.b.Close()
}

// Connect opens the first device matching id and selects its first
// configuration. Errors are *frisbee.TransportError values.
func (t *Transport) Connect(id frisbee.DeviceID) (frisbee.Handle, error) {
	log := t.log.With("device", id.String())

	dev, err := t.b.open(gousb.ID(id.Vendor), gousb.ID(id.Product))
	if err != nil {
		return nil, classify("open", err)
	}
	if dev == nil {
		return nil, &frisbee.TransportError{Kind: frisbee.TransportNotFound, Op: "open"}
	}

	if err := dev.SetAutoDetach(true); err != nil {
		log.Warn("could not enable kernel driver detach, continuing", "error", err)
	}
	if t.reset {
		if err := dev.Reset(); err != nil {
			log.Warn("device reset failed, continuing", "error", err)
		} else {
			log.Debug("device reset")
		}
	}

	cfgs := dev.configs()
	if len(cfgs) == 0 {
		dev.Close()
		return nil, &frisbee.TransportError{Kind: frisbee.TransportConfigFailed, Op: "config", Err: errors.New("device has no configurations")}
	}
	cfgNum := slices.Min(cfgs)
	cfg, err := dev.setConfig(cfgNum)
	if err != nil {
		dev.Close()
		return nil, classify(fmt.Sprintf("config %d", cfgNum), err)
	}
	dev.setControlTimeout(t.timeout)

	log.Info("device configured", "config", cfgNum, "timeout", t.timeout.String())
	return &handle{dev: dev, cfg: cfg}, nil
}

// classify maps a libusb error to a TransportError. Anything but a busy
// device or a missing one is reported as a configuration failure.
func classify(op string, err error) *frisbee.TransportError {
	kind := frisbee.TransportConfigFailed
	var uerr gousb.Error
	if errors.As(err, &uerr) {
		switch uerr {
		case gousb.ErrorBusy:
			kind = frisbee.TransportDriverBusy
		case gousb.ErrorNotFound, gousb.ErrorNoDevice:
			kind = frisbee.TransportNotFound
		}
	}
	return &frisbee.TransportError{Kind: kind, Op: op, Err: err}
}

// handle is an open, configured device.
type handle struct {
	mu  sync.Mutex
	dev device
	cfg closer
}

func (h *handle) ControlTransfer(req frisbee.ControlRequest) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dev == nil {
		return nil, &frisbee.TransportError{Kind: frisbee.TransportTransferFailed, Op: "control", Err: errors.New("device closed")}
	}

	buf := make([]byte, req.Length)
	n, err := h.dev.Control(req.RequestType, req.Request, req.Value, req.Index, buf)
	if err != nil {
		return nil, &frisbee.TransportError{Kind: frisbee.TransportTransferFailed, Op: "control", Err: err}
	}
	if !frisbee.RequestType(req.RequestType).In() {
		return nil, nil
	}
	return buf[:n], nil
}

// Close releases the configuration, then the device.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dev == nil {
		return nil
	}
	var errs []error
	if h.cfg != nil {
		if err := h.cfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("releasing config: %w", err))
		}
	}
	if err := h.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing device: %w", err))
	}
	h.dev, h.cfg = nil, nil
	return errors.Join(errs...)
}
