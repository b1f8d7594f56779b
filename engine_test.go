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
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trapedev/fixed-FrisbeeLite/logger"
)

var (
	testDevice = DeviceID{Vendor: 0x05ac, Product: 0x1297}
	testStart  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// testClock returns a clock that advances by a millisecond per call.
func testClock() func() time.Time {
	var mu sync.Mutex
	now := testStart
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func newTestEngine(t *fakeTransport, opts ...Option) *Engine {
	opts = append([]Option{WithClock(testClock()), WithSessionIDs(func() string { return "session-1" })}, opts...)
	return NewEngine(testDevice, t, opts...)
}

// descriptorSweep asks GET_STATUS, 0x04 and GET_DESCRIPTOR.
var descriptorSweep = SweepSpec{
	RequestType: Fixed[uint8](0x80),
	Request:     Sweep[uint8](0x05, 0x07),
	Value:       Fixed[uint16](0x0100),
	Index:       Fixed[uint16](0x0000),
	Length:      2,
}

func TestRun(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{}
	e := newTestEngine(ft, WithDescription("iPhone 4 (Apple, Inc.)"))
	defer e.Close()

	var sl MemoryLog
	res, err := e.Run(context.Background(), descriptorSweep, &sl)
	require.NoError(t, err)

	if got, want := res, (SweepResult{Total: 3, Successful: 3}); got != want {
		t.Errorf("Run: got %+v, want %+v", got, want)
	}
	if got, want := e.State(), StateConnected; got != want {
		t.Errorf("State after completed sweep: got %s, want %s", got, want)
	}

	wantReqs := []ControlRequest{
		{RequestType: 0x80, Request: 0x05, Value: 0x0100, Length: 2},
		{RequestType: 0x80, Request: 0x06, Value: 0x0100, Length: 2},
		{RequestType: 0x80, Request: 0x07, Value: 0x0100, Length: 2},
	}
	if got := ft.requests(); !reflect.DeepEqual(got, wantReqs) {
		t.Errorf("dispatched requests: got %v, want %v", got, wantReqs)
	}

	attempts := sl.Attempts()
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, wantReqs[i], a.Request)
		assert.Equal(t, Success([]byte{wantReqs[i].Request, 0x00}), a.Outcome)
		if i > 0 {
			assert.True(t, a.Time.After(attempts[i-1].Time), "attempt times increase")
		}
	}

	headers, footers := sl.Headers(), sl.Footers()
	require.Len(t, headers, 1)
	require.Len(t, footers, 1)
	assert.Equal(t, "session-1", headers[0].ID)
	assert.Equal(t, testDevice, headers[0].Device)
	assert.Equal(t, "iPhone 4 (Apple, Inc.)", headers[0].Description)
	assert.Equal(t, descriptorSweep, headers[0].Spec)
	assert.Equal(t, "session-1", footers[0].ID)
	assert.Equal(t, res, footers[0].Result)
	assert.Equal(t, 1, ft.connects)
}

func TestRunEmptyPayloads(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{empty: true}
	e := newTestEngine(ft)
	defer e.Close()

	spec := SweepSpec{
		RequestType: Fixed[uint8](0x80),
		Request:     Sweep[uint8](0x00, 0x02),
		Value:       Fixed[uint16](0x0000),
		Index:       Fixed[uint16](0x0000),
		Length:      0x08,
	}
	var sl MemoryLog
	res, err := e.Run(context.Background(), spec, &sl)
	require.NoError(t, err)
	if got, want := res, (SweepResult{Total: 3, Successful: 3}); got != want {
		t.Errorf("Run: got %+v, want %+v", got, want)
	}
	attempts := sl.Attempts()
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		want := ControlRequest{RequestType: 0x80, Request: uint8(i), Length: 0x08}
		assert.Equal(t, want, a.Request)
		assert.Equal(t, OutcomeSuccess, a.Outcome.Kind)
		assert.Empty(t, a.Outcome.Payload)
	}
}

func TestRunTransportFailuresAreRecorded(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{fail: func(r ControlRequest) bool { return r.Request == 0x06 }}
	e := newTestEngine(ft)
	defer e.Close()

	var sl MemoryLog
	res, err := e.Run(context.Background(), descriptorSweep, &sl)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 3, Successful: 2}, res)
	assert.Equal(t, uint64(1), res.Failed())

	attempts := sl.Attempts()
	require.Len(t, attempts, 3)
	assert.Equal(t, OutcomeTransportFailure, attempts[1].Outcome.Kind)
	assert.Contains(t, attempts[1].Outcome.Message, "pipe error")
	assert.True(t, attempts[2].Outcome.OK(), "sweep continues after a failure")

	top := e.Failures().Top(0)
	require.Len(t, top, 1)
	assert.Equal(t, int64(1), top[0].Count)
	assert.Equal(t, attempts[1].Outcome.Message, top[0].Message)
}

func TestRunEmptySweep(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{}
	e := newTestEngine(ft)
	defer e.Close()

	spec := descriptorSweep
	spec.Value = Sweep[uint16](0x0200, 0x0100)
	var sl MemoryLog
	res, err := e.Run(context.Background(), spec, &sl)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	assert.Empty(t, ft.requests())
	assert.Len(t, sl.Headers(), 1)
	assert.Len(t, sl.Footers(), 1)
}

func TestStopBeforeRun(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{}
	e := newTestEngine(ft)
	defer e.Close()

	e.Stop()
	var sl MemoryLog
	res, err := e.Run(context.Background(), descriptorSweep, &sl)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Cancelled: true}, res)
	assert.Empty(t, ft.requests())
	assert.Empty(t, sl.Attempts())
	require.Len(t, sl.Footers(), 1)
	assert.True(t, sl.Footers()[0].Result.Cancelled)
	assert.Equal(t, StateStopped, e.State())

	// The stop was consumed by the first sweep.
	res, err = e.Run(context.Background(), descriptorSweep, &sl)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 3, Successful: 3}, res)
	assert.Equal(t, StateConnected, e.State())
}

func TestStopAfterN(t *testing.T) {
	t.Parallel()
	spec := SweepSpec{
		RequestType: Fixed[uint8](0xc0),
		Request:     Sweep[uint8](0x00, 0xff),
		Value:       Sweep[uint16](0x0000, 0x00ff),
		Index:       Fixed[uint16](0),
		Length:      8,
	}
	for _, n := range []int{1, 2, 57, 300} {
		ft := &fakeTransport{}
		e := newTestEngine(ft)
		ft.onTransfer = func(i int, _ ControlRequest) {
			if i == n {
				e.Stop()
			}
		}
		var sl MemoryLog
		res, err := e.Run(context.Background(), spec, &sl)
		if err != nil {
			t.Fatalf("stop after %d: Run: %v", n, err)
		}
		if got, want := res, (SweepResult{Total: uint64(n), Successful: uint64(n), Cancelled: true}); got != want {
			t.Errorf("stop after %d: got %+v, want %+v", n, got, want)
		}
		if got, want := len(sl.Attempts()), n; got != want {
			t.Errorf("stop after %d: got %d logged attempts, want %d", n, got, want)
		}
		e.Close()
	}
}

func TestRunContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ft := &fakeTransport{onTransfer: func(i int, _ ControlRequest) {
		if i == 2 {
			cancel()
		}
	}}
	e := newTestEngine(ft)
	defer e.Close()

	var sl MemoryLog
	res, err := e.Run(ctx, descriptorSweep, &sl)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 2, Successful: 2, Cancelled: true}, res)
	assert.Equal(t, StateStopped, e.State())
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()
	spec := SweepSpec{
		RequestType: Sweep[uint8](0x80, 0x81),
		Request:     Sweep[uint8](0x00, 0x02),
		Value:       Sweep[uint16](0xfffe, 0xffff),
		Index:       Sweep[uint16](0x0000, 0x0001),
		Length:      4,
	}
	var runs [2][]ControlRequest
	for i := range runs {
		ft := &fakeTransport{}
		e := newTestEngine(ft)
		if _, err := e.Run(context.Background(), spec, &MemoryLog{}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		e.Close()
		runs[i] = ft.requests()
	}
	require.Len(t, runs[0], int(spec.Count()))
	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, ControlRequest{RequestType: 0x80, Request: 0x00, Value: 0xfffe, Index: 0x0001, Length: 4}, runs[0][1])
	assert.Equal(t, ControlRequest{RequestType: 0x81, Request: 0x02, Value: 0xffff, Index: 0x0001, Length: 4}, runs[0][len(runs[0])-1])
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc   string
		ft     *fakeTransport
		id     DeviceID
		reason ConnectReason
	}{
		{"unknown device", &fakeTransport{}, DeviceID{Vendor: 0xdead, Product: 0xbeef}, DeviceNotFound},
		{"busy", &fakeTransport{connectErr: &TransportError{Kind: TransportDriverBusy, Op: "config 1"}}, testDevice, ConfigurationFailed},
		{"plain error", &fakeTransport{connectErr: errors.New("boom")}, testDevice, ConfigurationFailed},
	}
	for _, tc := range tests {
		e := NewEngine(tc.id, tc.ft)
		var sl MemoryLog
		res, err := e.Run(context.Background(), descriptorSweep, &sl)
		var cerr *ConnectError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: Run error %v, want *ConnectError", tc.desc, err)
			continue
		}
		if got, want := cerr.Reason, tc.reason; got != want {
			t.Errorf("%s: reason: got %s, want %s", tc.desc, got, want)
		}
		if got, want := cerr.Device, tc.id; got != want {
			t.Errorf("%s: device: got %s, want %s", tc.desc, got, want)
		}
		assert.Equal(t, SweepResult{}, res, tc.desc)
		assert.Empty(t, sl.Headers(), tc.desc)
		assert.Empty(t, sl.Attempts(), tc.desc)
		assert.Empty(t, tc.ft.requests(), tc.desc)
		assert.Equal(t, StateIdle, e.State(), tc.desc)
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()
	spec := SweepSpec{
		RequestType: Fixed[uint8](0x80),
		Request:     Fixed[uint8](0x06),
		Value:       Sweep[uint16](0, 249),
		Index:       Fixed[uint16](0),
	}
	var got []SweepResult
	e := newTestEngine(&fakeTransport{}, WithProgress(func(r SweepResult) { got = append(got, r) }))
	defer e.Close()
	res, err := e.Run(context.Background(), spec, &MemoryLog{})
	require.NoError(t, err)
	assert.Equal(t, uint64(250), res.Total)
	assert.Equal(t, []SweepResult{{Total: 100, Successful: 100}, {Total: 200, Successful: 200}}, got)
	assert.Equal(t, SweepResult{Total: 250, Successful: 250}, e.Progress())
}

func TestBusy(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	ft := &fakeTransport{onTransfer: func(i int, _ ControlRequest) {
		if i == 1 {
			close(entered)
			<-release
		}
	}}
	e := newTestEngine(ft)

	done := make(chan error)
	go func() {
		_, err := e.Run(context.Background(), descriptorSweep, &MemoryLog{})
		done <- err
	}()
	<-entered

	assert.Equal(t, StateSweeping, e.State())
	assert.ErrorIs(t, e.Connect(), ErrBusy)
	assert.ErrorIs(t, e.Close(), ErrBusy)
	_, err := e.SingleShot(context.Background(), ControlRequest{RequestType: 0x80})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.Run(context.Background(), descriptorSweep, &MemoryLog{})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, e.Close())
}

func TestSingleShot(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{fail: func(r ControlRequest) bool { return r.Request == 0xff }}
	e := newTestEngine(ft)
	defer e.Close()
	ctx := context.Background()

	out, err := e.SingleShot(ctx, ControlRequest{RequestType: 0x80, Request: 0x06, Value: 0x0100, Length: 4})
	require.NoError(t, err)
	assert.Equal(t, Success([]byte{0x06, 0x00, 0x00, 0x00}), out)
	assert.Equal(t, StateConnected, e.State())

	out, err = e.SingleShot(ctx, ControlRequest{RequestType: 0x00, Request: 0x09, Value: 0x0001})
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Empty(t, out.Payload, "OUT requests return no payload")

	out, err = e.SingleShot(ctx, ControlRequest{RequestType: 0xc0, Request: 0xff})
	require.NoError(t, err, "transport failures are outcomes")
	assert.Equal(t, OutcomeTransportFailure, out.Kind)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	out, err = e.SingleShot(cctx, ControlRequest{RequestType: 0x80})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out.Kind)

	assert.Len(t, ft.requests(), 3)
	assert.Equal(t, 1, ft.connects, "the handle is reused")
}

func TestSingleShotConnectFailure(t *testing.T) {
	t.Parallel()
	e := NewEngine(DeviceID{Vendor: 1, Product: 2}, &fakeTransport{})
	_, err := e.SingleShot(context.Background(), ControlRequest{RequestType: 0x80})
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, DeviceNotFound, cerr.Reason)
}

func TestRunLogWriteError(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{}
	e := newTestEngine(ft)
	defer e.Close()

	sl := &failingLog{failAt: 2}
	res, err := e.Run(context.Background(), descriptorSweep, sl)
	var lerr *LogWriteError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "attempt", lerr.Record)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, uint64(1), res.Total)
	assert.Len(t, ft.requests(), 2, "the failed attempt was dispatched")
	assert.Empty(t, sl.Footers())
	assert.Equal(t, StateStopped, e.State())
}

func TestClose(t *testing.T) {
	t.Parallel()
	ft := &fakeTransport{}
	e := newTestEngine(ft)
	require.NoError(t, e.Connect())
	require.NoError(t, e.Connect(), "connect while connected")
	assert.Equal(t, 1, ft.connects)
	assert.Equal(t, StateConnected, e.State())

	require.NoError(t, e.Close())
	assert.Equal(t, StateIdle, e.State())
	assert.True(t, ft.handles[0].closed)
	assert.NoError(t, e.Close(), "second Close")

	require.NoError(t, e.Connect())
	assert.Equal(t, 2, ft.connects, "reconnect after Close")
	e.Close()
}

func TestEngineLogging(t *testing.T) {
	t.Parallel()
	log := logger.NewMockLogger()
	log.On("Info", "connected", mock.Anything).Once()
	log.On("With", "session", "session-1").Return(log)
	log.On("Info", "sweep started", mock.Anything).Once()
	log.On("Debug", "transfer failed", mock.Anything).Once()
	log.On("Info", "sweep completed", mock.Anything).Once()

	ft := &fakeTransport{fail: func(r ControlRequest) bool { return r.Request == 0x07 }}
	e := newTestEngine(ft, WithLogger(log))
	defer e.Close()
	_, err := e.Run(context.Background(), descriptorSweep, &MemoryLog{})
	require.NoError(t, err)
	log.AssertExpectations(t)
}

func TestEngineString(t *testing.T) {
	e := NewEngine(testDevice, &fakeTransport{})
	if got, want := fmt.Sprint(e), "vid=05ac,pid=1297"; got != want {
		t.Errorf("Engine.String(): got %q, want %q", got, want)
	}
}
