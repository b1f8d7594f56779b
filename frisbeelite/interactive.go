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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
)

// console is the interactive mode. A sweep runs in the background while
// the console keeps reading commands, so it can be stopped or inspected.
type console struct {
	app *app
	out io.Writer
	eng *frisbee.Engine

	req  frisbee.ControlRequest
	spec frisbee.SweepSpec

	// sweepDone is closed when the background sweep returns. It is nil
	// before the first sweep.
	sweepDone chan struct{}
	// cancel stops the background sweep.
	cancel context.CancelFunc
}

func newConsole(a *app, out io.Writer) *console {
	return &console{
		app:  a,
		out:  out,
		eng:  a.newEngine(),
		req:  a.opts.single,
		spec: a.opts.spec,
	}
}

func (a *app) runInteractive(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "frisbee> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("status"),
			readline.PcItem("set", fieldCompleters()...),
			readline.PcItem("range", fieldCompleters()...),
			readline.PcItem("reset"),
			readline.PcItem("save"),
			readline.PcItem("single"),
			readline.PcItem("sweep"),
			readline.PcItem("stop"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c := newConsole(a, rl.Stdout())
	defer c.close()
	c.printHelp()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// ^C stops a sweep, it does not leave the console.
			c.stop()
			continue
		}
		if err != nil {
			return nil
		}
		if c.exec(ctx, line) {
			return nil
		}
	}
}

func fieldCompleters() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, f := range []string{"bmRequestType", "bRequest", "wValue", "wIndex", "wLength"} {
		items = append(items, readline.PcItem(f))
	}
	return items
}

// close stops a running sweep, waits for it and releases the device.
func (c *console) close() {
	c.stop()
	c.wait()
	c.eng.Close()
}

// stop cancels the running sweep, if any. A stop with no sweep running
// does not affect the next one.
func (c *console) stop() bool {
	if !c.sweeping() {
		return false
	}
	c.cancel()
	return true
}

func (c *console) wait() {
	if c.sweepDone != nil {
		<-c.sweepDone
	}
}

func (c *console) sweeping() bool {
	if c.sweepDone == nil {
		return false
	}
	select {
	case <-c.sweepDone:
		return false
	default:
		return true
	}
}

// exec runs one command line. It reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "set":
		c.cmdSet(args)
	case "range":
		c.cmdRange(args)
	case "reset":
		c.spec = frisbee.SingleRequest(c.req)
		fmt.Fprintf(c.out, "Sweep: %s (%d requests)\n", c.spec, c.spec.Count())
	case "save":
		c.cmdSave(args)
	case "single", "send":
		c.cmdSingle(ctx)
	case "sweep", "fuzz", "start":
		c.cmdSweep(ctx)
	case "stop":
		if c.stop() {
			fmt.Fprintln(c.out, "[INFO] Stopping sweep...")
		} else {
			fmt.Fprintln(c.out, "No sweep is running")
		}
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `
FrisbeeLite Commands:
  status                     - Show device state, request, sweep and progress
  set <field> <value>        - Set a field of the single request, or wLength
  range <field> <start> <end> - Sweep a field over [start, end]
  range <field> off          - Stop sweeping a field; it keeps its start value
  reset                      - Stop sweeping every field; sweep the single request only
  save <file>                - Write the device and sweep as a -config YAML file
  single                     - Send the single request
  sweep                      - Start a sweep in the background
  stop                       - Stop the running sweep
  quit                       - Stop any sweep and exit

Fields: bmRequestType bRequest wValue wIndex wLength
`)
}

func (c *console) cmdStatus() {
	fmt.Fprintf(c.out, "Device:  %s %s\n", c.eng.Device(), c.app.names.Describe(c.eng.Device()))
	fmt.Fprintf(c.out, "State:   %s\n", c.eng.State())
	fmt.Fprintf(c.out, "Request: %s\n", c.req)
	fmt.Fprintf(c.out, "Sweep:   %s (%d requests)\n", c.spec, c.spec.Count())
	p := c.eng.Progress()
	fmt.Fprintf(c.out, "Progress: %d sent, %d successful, %d failed\n", p.Total, p.Successful, p.Failed())
	for _, f := range c.eng.Failures().Top(topFailures) {
		fmt.Fprintf(c.out, "  %6d  %s\n", f.Count, f.Message)
	}
}

func parseField(name, value string) (uint64, error) {
	bits := 16
	switch name {
	case "bmRequestType", "bRequest":
		bits = 8
	case "wValue", "wIndex", "wLength":
	default:
		return 0, fmt.Errorf("unknown field %q", name)
	}
	v, err := strconv.ParseUint(value, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a %d-bit unsigned number", name, value, bits)
	}
	return v, nil
}

func (c *console) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: set <field> <value>")
		return
	}
	v, err := parseField(args[0], args[1])
	if err != nil {
		fmt.Fprintf(c.out, "[ERROR] %v\n", err)
		return
	}
	switch args[0] {
	case "bmRequestType":
		c.req.RequestType = uint8(v)
		if !c.spec.RequestType.Enabled {
			c.spec.RequestType = frisbee.Fixed(uint8(v))
		}
	case "bRequest":
		c.req.Request = uint8(v)
		if !c.spec.Request.Enabled {
			c.spec.Request = frisbee.Fixed(uint8(v))
		}
	case "wValue":
		c.req.Value = uint16(v)
		if !c.spec.Value.Enabled {
			c.spec.Value = frisbee.Fixed(uint16(v))
		}
	case "wIndex":
		c.req.Index = uint16(v)
		if !c.spec.Index.Enabled {
			c.spec.Index = frisbee.Fixed(uint16(v))
		}
	case "wLength":
		c.req.Length = uint16(v)
		c.spec.Length = uint16(v)
	}
	fmt.Fprintf(c.out, "Request: %s\n", c.req)
}

func (c *console) cmdRange(args []string) {
	if len(args) == 2 && args[1] == "off" {
		switch args[0] {
		case "bmRequestType":
			c.spec.RequestType.Enabled = false
		case "bRequest":
			c.spec.Request.Enabled = false
		case "wValue":
			c.spec.Value.Enabled = false
		case "wIndex":
			c.spec.Index.Enabled = false
		default:
			fmt.Fprintf(c.out, "[ERROR] %q cannot be swept\n", args[0])
			return
		}
		fmt.Fprintf(c.out, "Sweep: %s\n", c.spec)
		return
	}
	if len(args) != 3 || args[0] == "wLength" {
		fmt.Fprintln(c.out, "Usage: range <bmRequestType|bRequest|wValue|wIndex> <start> <end> | off")
		return
	}
	start, err := parseField(args[0], args[1])
	if err == nil {
		var end uint64
		end, err = parseField(args[0], args[2])
		if err == nil && end < start {
			err = fmt.Errorf("%s: end 0x%x is below start 0x%x", args[0], end, start)
		}
		if err == nil {
			switch args[0] {
			case "bmRequestType":
				c.spec.RequestType = frisbee.Sweep(uint8(start), uint8(end))
			case "bRequest":
				c.spec.Request = frisbee.Sweep(uint8(start), uint8(end))
			case "wValue":
				c.spec.Value = frisbee.Sweep(uint16(start), uint16(end))
			case "wIndex":
				c.spec.Index = frisbee.Sweep(uint16(start), uint16(end))
			}
		}
	}
	if err != nil {
		fmt.Fprintf(c.out, "[ERROR] %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Sweep: %s (%d requests)\n", c.spec, c.spec.Count())
}

func (c *console) cmdSave(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: save <file>")
		return
	}
	cfg := frisbee.NewSweepConfig(c.eng.Device(), c.spec)
	cfg.Log, cfg.Capture, cfg.Timeout = c.app.opts.logPath, c.app.opts.capturePath, c.app.opts.timeout
	data, err := cfg.Marshal()
	if err == nil {
		err = os.WriteFile(args[0], data, 0644)
	}
	if err != nil {
		fmt.Fprintf(c.out, "[ERROR] save: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "[INFO] Saved to %s\n", args[0])
}

func (c *console) cmdSingle(ctx context.Context) {
	out, err := c.eng.SingleShot(ctx, c.req)
	if errors.Is(err, frisbee.ErrBusy) {
		fmt.Fprintln(c.out, "[ERROR] A sweep is running; stop it first")
		return
	}
	if err != nil {
		fmt.Fprintf(c.out, "[ERROR] %v\n", err)
		return
	}
	printSingle(c.out, c.app.now(), c.req, out)
}

func (c *console) cmdSweep(ctx context.Context) {
	if c.sweeping() {
		fmt.Fprintln(c.out, "[ERROR] A sweep is already running")
		return
	}
	sl, path, closeLog, err := c.app.openSessionLog()
	if err != nil {
		fmt.Fprintf(c.out, "[ERROR] opening session log: %v\n", err)
		return
	}
	spec := c.spec
	fmt.Fprintf(c.out, "[INFO] Starting sweep: %s (%d requests)\n", spec, spec.Count())
	fmt.Fprintf(c.out, "[INFO] Log file: %s\n", path)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.sweepDone, c.cancel = done, cancel
	go func() {
		defer close(done)
		defer cancel()
		defer closeLog()
		res, err := c.eng.Run(ctx, spec, sl)
		if err != nil {
			fmt.Fprintf(c.out, "[ERROR] sweep: %v\n", err)
			return
		}
		printSummary(c.out, res, c.eng.Failures(), path)
	}()
}
