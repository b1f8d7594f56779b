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

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

func TestConsoleSetAndRange(t *testing.T) {
	a, _ := newTestApp(t, "-vid 1 -pid 2 -interactive", &fakeTransport{})
	out := new(syncBuffer)
	c := newConsole(a, out)
	defer c.close()
	ctx := context.Background()

	c.exec(ctx, "set bRequest 0x00")
	c.exec(ctx, "set wLength 4")
	c.exec(ctx, "range wValue 0x0000 0x0003")
	assert.Equal(t, frisbee.ControlRequest{RequestType: 0x80, Request: 0x00, Length: 4}, c.req)
	assert.Equal(t, frisbee.Sweep[uint16](0, 3), c.spec.Value)
	assert.Equal(t, frisbee.Fixed[uint8](0x00), c.spec.Request)
	assert.Equal(t, uint64(4), c.spec.Count())

	c.exec(ctx, "range wValue off")
	assert.Equal(t, uint64(1), c.spec.Count())

	for _, line := range []string{
		"set bRequest 0x100",
		"set wFoo 1",
		"range wValue 4 3",
		"range wLength 0 1",
		"range bRequest",
	} {
		before := c.spec
		c.exec(ctx, line)
		assert.Equal(t, before, c.spec, line)
	}
	assert.Contains(t, out.String(), "[ERROR]")
	assert.Contains(t, out.String(), "Usage: range")
}

func TestConsoleResetAndSave(t *testing.T) {
	a, _ := newTestApp(t, "-vid 0x05ac -pid 0x1297 -interactive -wValue 0x0100", &fakeTransport{})
	out := new(syncBuffer)
	c := newConsole(a, out)
	defer c.close()
	ctx := context.Background()

	c.exec(ctx, "range bRequest 0x00 0x0f")
	c.exec(ctx, "range wIndex 0 3")
	assert.Equal(t, uint64(64), c.spec.Count())
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	c.exec(ctx, "save "+path)
	assert.Contains(t, out.String(), "[INFO] Saved to "+path)

	cfg, err := frisbee.LoadSweepConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c.spec, cfg.Spec())
	assert.Equal(t, frisbee.DeviceID{Vendor: 0x05ac, Product: 0x1297}, cfg.DeviceID())
	assert.Equal(t, a.opts.logPath, cfg.Log)

	c.exec(ctx, "reset")
	assert.Equal(t, frisbee.SingleRequest(c.req), c.spec)
	assert.Equal(t, uint64(1), c.spec.Count())
	assert.Equal(t, uint16(0x0100), c.spec.Value.Start)

	c.exec(ctx, "save")
	assert.Contains(t, out.String(), "Usage: save <file>")
}

func TestConsoleSingle(t *testing.T) {
	a, _ := newTestApp(t, "-vid 1 -pid 2 -interactive -bRequest 0x09", &fakeTransport{})
	out := new(syncBuffer)
	c := newConsole(a, out)
	defer c.close()

	c.exec(context.Background(), "single")
	assert.Contains(t, out.String(), "Received: [09]")
}

func TestConsoleSweepAndStop(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	a, _ := newTestApp(t, "-vid 1 -pid 2 -interactive", tr)
	out := new(syncBuffer)
	c := newConsole(a, out)
	ctx := context.Background()

	assert.False(t, c.exec(ctx, "stop"))
	assert.Contains(t, out.String(), "No sweep is running")

	c.exec(ctx, "range wIndex 0 0xffff")
	c.exec(ctx, "sweep")
	tr.block <- struct{}{}
	assert.True(t, c.sweeping())

	c.exec(ctx, "sweep")
	assert.Contains(t, out.String(), "A sweep is already running")

	c.exec(ctx, "stop")
	// Release the transfer that may be waiting when the cancel lands.
	go func() {
		for {
			select {
			case tr.block <- struct{}{}:
			case <-c.sweepDone:
				return
			}
		}
	}()
	c.wait()
	assert.False(t, c.sweeping())
	assert.Contains(t, out.String(), "[INFO] Sweep stopped\n")
	assert.Equal(t, frisbee.StateStopped, c.eng.State())

	assert.True(t, c.exec(ctx, "quit"))
	c.close()
	assert.Equal(t, frisbee.StateIdle, c.eng.State())
}
