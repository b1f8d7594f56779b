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
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
	"github.com/trapedev/fixed-FrisbeeLite/logger"
	"github.com/trapedev/fixed-FrisbeeLite/usbid"
)

type mode int

const (
	modeSingle mode = iota + 1
	modeSweep
	modeInteractive
)

func (m mode) String() string {
	switch m {
	case modeSingle:
		return "single"
	case modeSweep:
		return "fuzz"
	case modeInteractive:
		return "interactive"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// options is the parsed command line.
type options struct {
	mode   mode
	device frisbee.DeviceID
	// single is the request of -single and the starting point of the
	// interactive console.
	single frisbee.ControlRequest
	spec   frisbee.SweepSpec

	logPath     string
	capturePath string
	timeout     time.Duration
	reset       bool

	usbDebug  int
	logLevel  logger.Level
	logFormat logger.Format
	ids       string
}

const usage = `Usage: frisbeelite -vid VID -pid PID (-single | -fuzz | -interactive) [flags]

Examples:
  # Single control transfer
  frisbeelite -vid 0x05ac -pid 0x1297 -single \
    -bmRequestType 0x80 -bRequest 0x06 -wValue 0x0100 -wIndex 0x0000 -wLength 0x0012

  # Sweep bRequest values
  frisbeelite -vid 0x05ac -pid 0x1297 -fuzz \
    -bmRequestType 0x80 -bRequest-start 0x00 -bRequest-end 0xff -bRequest-fuzz \
    -wValue 0x0000 -wIndex 0x0000 -wLength 0x0008

  # Sweep described by a file, overriding its log path
  frisbeelite -config sweep.yaml -fuzz -log today.txt

Flags:
`

// dimension holds the four flags of one sweep dimension.
type dimension[T uint8 | uint16] struct {
	value, start, end frisbee.Hex[T]
	fuzz              bool
}

// define registers -name, -name-start, -name-end and -name-fuzz with
// defaults taken from r.
func (d *dimension[T]) define(fs *flag.FlagSet, name string, r frisbee.RangeConfig[T]) {
	d.value = r.Start
	d.start, d.end = frisbee.HexOf[T](0), frisbee.HexOf(^T(0))
	if r.Enabled {
		d.start, d.end = r.Start, r.End
	}
	d.fuzz = r.Enabled
	fs.Var(&d.value, name, "value of "+name+" when it is not swept")
	fs.Var(&d.start, name+"-start", "first value of "+name+" when swept")
	fs.Var(&d.end, name+"-end", "last value of "+name+" when swept")
	fs.BoolVar(&d.fuzz, name+"-fuzz", d.fuzz, "sweep "+name+" from -"+name+"-start to -"+name+"-end")
}

func (d *dimension[T]) rangeConfig() frisbee.RangeConfig[T] {
	if d.fuzz {
		return frisbee.RangeConfig[T]{Start: d.start, End: d.end, Enabled: true}
	}
	return frisbee.RangeConfig[T]{Start: d.value, End: d.value}
}

type flagValues struct {
	config                 string
	vid, pid               frisbee.Hex[uint16]
	single, fuzz, interact bool
	requestType, request   dimension[uint8]
	value, index           dimension[uint16]
	length                 frisbee.Hex[uint16]
	log, capture           string
	timeout                time.Duration
	noReset                bool
	usbDebug               int
	verbose                bool
	logLevel               string
	logFormat              string
	ids                    string
}

func newFlagSet(cfg *frisbee.SweepConfig, v *flagValues, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("frisbeelite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	v.vid, v.pid = cfg.Device.Vendor, cfg.Device.Product
	v.length = cfg.Length

	fs.StringVar(&v.config, "config", "", "YAML sweep file; flags given on the command line override it")
	fs.Var(&v.vid, "vid", "vendor ID, e.g. 0x05ac")
	fs.Var(&v.pid, "pid", "product ID, e.g. 0x1297")
	fs.BoolVar(&v.single, "single", false, "send a single control transfer")
	fs.BoolVar(&v.fuzz, "fuzz", false, "sweep control transfers and log every attempt")
	fs.BoolVar(&v.interact, "interactive", false, "start an interactive console")
	v.requestType.define(fs, "bmRequestType", cfg.RequestType)
	v.request.define(fs, "bRequest", cfg.Request)
	v.value.define(fs, "wValue", cfg.Value)
	v.index.define(fs, "wIndex", cfg.Index)
	fs.Var(&v.length, "wLength", "data stage length of every request")
	fs.StringVar(&v.log, "log", cfg.Log, "session log path (default FrisbeeLite_logfile_YYYY-MM-DD.txt)")
	fs.StringVar(&v.capture, "capture", cfg.Capture, "also write a binary capture of the session to this path")
	fs.DurationVar(&v.timeout, "timeout", cfg.Timeout, "control transfer timeout (0 means 1s)")
	fs.BoolVar(&v.noReset, "no-reset", false, "do not reset the device before configuring it")
	fs.IntVar(&v.usbDebug, "debug", 0, "libusb debug level, 0 (off) to 4")
	fs.BoolVar(&v.verbose, "v", false, "log every failed transfer (same as -log-level debug)")
	fs.StringVar(&v.logLevel, "log-level", "info", "operational log level: debug, info, warn or error")
	fs.StringVar(&v.logFormat, "log-format", string(logger.FormatConsole), "operational log format: console or json")
	fs.StringVar(&v.ids, "ids", "", "usb.ids database file or URL, e.g. "+usbid.LinuxUsbDotOrg+" (default: search the system)")
	return fs
}

// parseOptions parses args. If -config names a file, the flags are parsed
// a second time with the file's values as defaults.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	cfg := frisbee.DefaultSweepConfig()
	var v flagValues
	fs := newFlagSet(cfg, &v, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if v.config != "" {
		var err error
		if cfg, err = frisbee.LoadSweepConfig(v.config); err != nil {
			return nil, err
		}
		v = flagValues{}
		fs = newFlagSet(cfg, &v, io.Discard)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments %q", fs.Args())
	}

	o := &options{
		device: frisbee.DeviceID{Vendor: frisbee.ID(v.vid.V), Product: frisbee.ID(v.pid.V)},
		single: frisbee.ControlRequest{
			RequestType: v.requestType.value.V,
			Request:     v.request.value.V,
			Value:       v.value.value.V,
			Index:       v.index.value.V,
			Length:      v.length.V,
		},
		logPath:     v.log,
		capturePath: v.capture,
		timeout:     v.timeout,
		reset:       !v.noReset,
		usbDebug:    v.usbDebug,
		logLevel:    logger.ParseLevel(v.logLevel),
		logFormat:   logger.Format(v.logFormat),
		ids:         v.ids,
	}
	sweep := frisbee.SweepConfig{
		RequestType: v.requestType.rangeConfig(),
		Request:     v.request.rangeConfig(),
		Value:       v.value.rangeConfig(),
		Index:       v.index.rangeConfig(),
		Length:      v.length,
	}
	o.spec = sweep.Spec()
	if v.verbose {
		o.logLevel = logger.DebugLevel
	}

	n := 0
	for m, set := range map[mode]bool{modeSingle: v.single, modeSweep: v.fuzz, modeInteractive: v.interact} {
		if set {
			o.mode = m
			n++
		}
	}
	switch {
	case n == 0:
		return nil, errors.New("one of -single, -fuzz or -interactive is required")
	case n > 1:
		return nil, errors.New("-single, -fuzz and -interactive are mutually exclusive")
	}
	if o.device.Vendor == 0 && o.device.Product == 0 {
		return nil, errors.New("-vid and -pid are required")
	}
	if o.logFormat != logger.FormatConsole && o.logFormat != logger.FormatJSON {
		return nil, fmt.Errorf("-log-format: unknown format %q", v.logFormat)
	}
	return o, nil
}
