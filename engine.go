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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/trapedev/fixed-FrisbeeLite/logger"
)

// ProgressInterval is the number of attempts between progress notifications.
const ProgressInterval = 100

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithProgress registers fn to be called after every ProgressInterval-th
// attempt of a sweep. fn runs on the sweep goroutine and should return
// quickly.
func WithProgress(fn func(SweepResult)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithFailureStats makes the engine count transport failures into s.
func WithFailureStats(s *FailureStats) Option {
	return func(e *Engine) { e.failures = s }
}

// WithDescription sets the device name written to session headers.
func WithDescription(desc string) Option {
	return func(e *Engine) { e.desc = desc }
}

// WithClock replaces time.Now for attempt and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSessionIDs replaces the generator of session IDs.
func WithSessionIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine sweeps control requests over a single device.
//
// The device handle is owned by one operation at a time: Connect,
// SingleShot, Run and Close fail with ErrBusy while another of them is in
// progress. Stop, State and Progress may be called from any goroutine.
type Engine struct {
	id        DeviceID
	transport Transport
	log       logger.Logger
	progress  func(SweepResult)
	failures  *FailureStats
	desc      string
	now       func() time.Time
	newID     func() string

	// handle is only touched by the holder of busy.
	handle Handle
	busy   atomic.Bool
	stop   atomic.Bool
	state  atomic.Uint32

	total      atomic.Uint64
	successful atomic.Uint64
}

// NewEngine returns an idle Engine for the device id. No connection is made
// until Connect, SingleShot or Run.
func NewEngine(id DeviceID, t Transport, opts ...Option) *Engine {
	e := &Engine{
		id:        id,
		transport: t,
		log:       logger.Nop(),
		failures:  NewFailureStats(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// String represents a human readable representation of the engine.
func (e *Engine) String() string {
	return fmt.Sprintf("vid=%s,pid=%s", e.id.Vendor, e.id.Product)
}

// Device returns the target device.
func (e *Engine) Device() DeviceID { return e.id }

// State returns the current lifecycle state.
func (e *Engine) State() EngineState { return EngineState(e.state.Load()) }

func (e *Engine) setState(s EngineState) { e.state.Store(uint32(s)) }

// Progress returns the counters of the running sweep, or of the last one
// if none is running.
func (e *Engine) Progress() SweepResult {
	return SweepResult{Total: e.total.Load(), Successful: e.successful.Load()}
}

// Failures returns the transport failure counters.
func (e *Engine) Failures() *FailureStats { return e.failures }

// Stop asks a running sweep to finish before its next dispatch. A transfer
// already in flight completes and is recorded. If no sweep is running, the
// next Run stops before its first dispatch. Stop never blocks.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Connect opens the device through the transport. It returns nil without
// reconnecting if the device is already open. The transport is asked once;
// failures are returned as *ConnectError.
func (e *Engine) Connect() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)
	return e.connect()
}

func (e *Engine) connect() error {
	if e.handle != nil {
		return nil
	}
	h, err := e.transport.Connect(e.id)
	if err != nil {
		cerr := newConnectError(e.id, err)
		e.log.Error("connect failed", "device", e.id.String(), "reason", cerr.Reason.String(), "error", err)
		return cerr
	}
	e.handle = h
	e.setState(StateConnected)
	e.log.Info("connected", "device", e.id.String())
	return nil
}

// Close releases the device handle and returns the engine to StateIdle.
func (e *Engine) Close() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)
	if e.handle == nil {
		return nil
	}
	err := e.handle.Close()
	e.handle = nil
	e.setState(StateIdle)
	if err != nil {
		return fmt.Errorf("closing %s: %w", e, err)
	}
	return nil
}

// SingleShot dispatches one control request, connecting first if needed,
// and returns its outcome. Nothing is written to any session log.
// A transport failure is reported in the Outcome, not as an error; the
// error is non-nil only if the device cannot be connected or is busy.
func (e *Engine) SingleShot(ctx context.Context, req ControlRequest) (Outcome, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer e.busy.Store(false)

	if ctx.Err() != nil {
		return Cancelled(), nil
	}
	if err := e.connect(); err != nil {
		return Outcome{}, err
	}
	return e.dispatch(req).Outcome, nil
}

// Run connects if needed, then dispatches every combination of spec in
// lexicographic order and appends each attempt to sl, bracketed by a
// session header and footer.
//
// Transport failures are recorded and never stop the sweep. The sweep ends
// early only when Stop is called or ctx is done; that is not an error and
// is reported by SweepResult.Cancelled. The returned error is a
// *ConnectError if no handle could be obtained, or a *LogWriteError if sl
// failed, in which case the sweep is aborted.
func (e *Engine) Run(ctx context.Context, spec SweepSpec, sl SessionLog) (SweepResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return SweepResult{}, ErrBusy
	}
	defer e.busy.Store(false)
	// A Stop issued before or during this sweep is consumed by it.
	defer e.stop.Store(false)

	if err := e.connect(); err != nil {
		return SweepResult{}, err
	}

	header := SessionHeader{
		ID:          e.newID(),
		Start:       e.now(),
		Device:      e.id,
		Description: e.desc,
		Spec:        spec,
	}
	log := e.log.With("session", header.ID)

	e.total.Store(0)
	e.successful.Store(0)
	e.failures.Reset()
	e.setState(StateSweeping)

	if err := sl.WriteHeader(header); err != nil {
		return e.abort(log, SweepResult{}, "header", err)
	}
	log.Info("sweep started", "device", e.id.String(), "spec", spec.String(), "combinations", spec.Count())

	var res SweepResult
	for req := range spec.Requests() {
		if e.stop.Load() || ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		a := e.dispatch(req)
		if err := sl.Append(a); err != nil {
			return e.abort(log, res, "attempt", err)
		}
		res.Total++
		e.total.Store(res.Total)
		if a.Outcome.OK() {
			res.Successful++
			e.successful.Store(res.Successful)
		} else {
			log.Debug("transfer failed", "request", req.String(), "error", a.Outcome.Message)
		}
		if e.progress != nil && res.Total%ProgressInterval == 0 {
			e.progress(res)
		}
	}

	if err := sl.WriteFooter(SessionFooter{ID: header.ID, End: e.now(), Result: res}); err != nil {
		return e.abort(log, res, "footer", err)
	}
	if res.Cancelled {
		e.setState(StateStopped)
		log.Info("sweep stopped", "total", res.Total, "successful", res.Successful, "failed", res.Failed())
	} else {
		e.setState(StateConnected)
		log.Info("sweep completed", "total", res.Total, "successful", res.Successful, "failed", res.Failed())
	}
	return res, nil
}

func (e *Engine) abort(log logger.Logger, res SweepResult, record string, err error) (SweepResult, error) {
	e.setState(StateStopped)
	lerr := &LogWriteError{Record: record, Err: err}
	log.Error("sweep aborted", "total", res.Total, "successful", res.Successful, "error", lerr)
	return res, lerr
}

// dispatch performs one control transfer. It never fails: transport errors
// become a TransportFailure outcome.
func (e *Engine) dispatch(req ControlRequest) Attempt {
	a := Attempt{Time: e.now(), Request: req}
	payload, err := e.handle.ControlTransfer(req)
	if err != nil {
		e.failures.Record(err.Error())
		a.Outcome = TransportFailure(err)
		return a
	}
	a.Outcome = Success(payload)
	return a
}
