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

// frisbeelite sends USB control transfers to a device, one at a time or as
// a sweep over ranges of the setup packet fields, and logs every attempt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	frisbee "github.com/trapedev/fixed-FrisbeeLite"
	"github.com/trapedev/fixed-FrisbeeLite/logger"
	"github.com/trapedev/fixed-FrisbeeLite/usbdev"
	"github.com/trapedev/fixed-FrisbeeLite/usbid"
)

// topFailures is the number of distinct transfer errors in the summary.
const topFailures = 5

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "frisbeelite: %v\n", err)
		os.Exit(2)
	}

	log := logger.NewSlog(os.Stderr, opts.logLevel, opts.logFormat)
	logger.SetDefault(log)

	topts := []usbdev.Option{usbdev.WithLogger(log), usbdev.WithReset(opts.reset), usbdev.WithDebug(opts.usbDebug)}
	if opts.timeout > 0 {
		topts = append(topts, usbdev.WithTimeout(opts.timeout))
	}
	// Only one context should be needed for an application. It is closed
	// before exiting.
	tr := usbdev.New(topts...)

	a := &app{
		opts:      opts,
		out:       os.Stdout,
		log:       log,
		transport: tr,
		names:     loadNames(opts.ids, log),
		now:       time.Now,
	}
	code := a.run(context.Background())
	tr.Close()
	os.Exit(code)
}

// loadNames loads the usb.ids database from path, which may be a URL. A
// missing database only costs the device names.
func loadNames(path string, log logger.Logger) *usbid.DB {
	var (
		db  *usbid.DB
		err error
	)
	if path != "" {
		db, err = usbid.Load(path)
	} else {
		db, err = usbid.LoadSystem()
	}
	if err != nil {
		log.Debug("device names unavailable", "error", err)
		return nil
	}
	log.Debug("loaded device names", "source", db.Source, "vendors", db.Len())
	return db
}

// app runs one mode of the tool.
type app struct {
	opts      *options
	out       io.Writer
	log       logger.Logger
	transport frisbee.Transport
	names     *usbid.DB
	now       func() time.Time
	// interrupts delivers the signals that stop a sweep. Nil means SIGINT
	// and SIGTERM.
	interrupts chan os.Signal
}

func (a *app) newEngine(opts ...frisbee.Option) *frisbee.Engine {
	opts = append([]frisbee.Option{
		frisbee.WithLogger(a.log),
		frisbee.WithDescription(a.names.Describe(a.opts.device)),
		frisbee.WithClock(a.now),
	}, opts...)
	return frisbee.NewEngine(a.opts.device, a.transport, opts...)
}

// run returns the process exit code.
func (a *app) run(ctx context.Context) int {
	a.log.Info("target device", "device", a.opts.device.String(), "name", a.names.Describe(a.opts.device), "mode", a.opts.mode.String())
	var err error
	switch a.opts.mode {
	case modeSingle:
		err = a.runSingle(ctx)
	case modeSweep:
		err = a.runSweep(ctx)
	case modeInteractive:
		err = a.runInteractive(ctx)
	}
	if err != nil {
		a.log.Error("failed", "mode", a.opts.mode.String(), "error", err)
		return 1
	}
	return 0
}

func (a *app) runSingle(ctx context.Context) error {
	eng := a.newEngine()
	defer eng.Close()

	req := a.opts.single
	out, err := eng.SingleShot(ctx, req)
	if err != nil {
		return err
	}
	printSingle(a.out, a.now(), req, out)
	return nil
}

func printSingle(w io.Writer, t time.Time, req frisbee.ControlRequest, out frisbee.Outcome) {
	fmt.Fprintf(w, "\n%s\n", t.Format("2006/01/02 15:04:05"))
	fmt.Fprintf(w, "  bmRequestType: 0x%02x (%s)\n", req.RequestType, frisbee.RequestType(req.RequestType))
	fmt.Fprintf(w, "  bRequest: 0x%02x", req.Request)
	if name := req.RequestName(); name != "" {
		fmt.Fprintf(w, " (%s)", name)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  wValue: 0x%04x\n", req.Value)
	fmt.Fprintf(w, "  wIndex: 0x%04x\n", req.Index)
	fmt.Fprintf(w, "  wLength: 0x%04x\n", req.Length)
	fmt.Fprintf(w, "  %s\n", out)
}

// openSessionLog opens the text log and, if requested, the capture. The
// returned close function closes both.
func (a *app) openSessionLog() (frisbee.SessionLog, string, func() error, error) {
	path := a.opts.logPath
	if path == "" {
		path = frisbee.DefaultLogPath(a.now())
	}
	text, err := frisbee.OpenTextLog(path)
	if err != nil {
		return nil, "", nil, err
	}
	if a.opts.capturePath == "" {
		return text, path, text.Close, nil
	}
	capture, err := frisbee.OpenCaptureLog(a.opts.capturePath)
	if err != nil {
		text.Close()
		return nil, "", nil, err
	}
	closeBoth := func() error {
		return errors.Join(text.Close(), capture.Close())
	}
	return frisbee.MultiLog{text, capture}, path, closeBoth, nil
}

func (a *app) runSweep(ctx context.Context) error {
	sl, path, closeLog, err := a.openSessionLog()
	if err != nil {
		return fmt.Errorf("opening session log: %w", err)
	}
	defer closeLog()

	eng := a.newEngine(frisbee.WithProgress(func(r frisbee.SweepResult) {
		fmt.Fprintf(a.out, "\r[PROGRESS] Tests: %d, Successful: %d", r.Total, r.Successful)
	}))
	defer eng.Close()

	sigs := a.interrupts
	if sigs == nil {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigs:
			a.log.Info("stopping sweep", "signal", sig.String())
			eng.Stop()
		case <-done:
		}
	}()

	fmt.Fprintf(a.out, "[INFO] Starting sweep: %s (%d requests)\n", a.opts.spec, a.opts.spec.Count())
	if a.opts.spec.Count() == 0 {
		a.log.Warn("sweep is empty: a swept dimension ends below its start", "spec", a.opts.spec.String())
	}
	fmt.Fprintf(a.out, "[INFO] Log file: %s\n", path)
	res, err := eng.Run(ctx, a.opts.spec, sl)
	if err != nil {
		return err
	}
	printSummary(a.out, res, eng.Failures(), path)
	return nil
}

func printSummary(w io.Writer, res frisbee.SweepResult, failures *frisbee.FailureStats, path string) {
	if res.Cancelled {
		fmt.Fprintf(w, "\n\n[INFO] Sweep stopped\n")
	} else {
		fmt.Fprintf(w, "\n\n[INFO] Sweep completed\n")
	}
	fmt.Fprintf(w, "[INFO] Total tests: %d\n", res.Total)
	fmt.Fprintf(w, "[INFO] Successful: %d\n", res.Successful)
	fmt.Fprintf(w, "[INFO] Failed: %d\n", res.Failed())
	for _, f := range failures.Top(topFailures) {
		fmt.Fprintf(w, "[INFO]   %6d  %s\n", f.Count, f.Message)
	}
	fmt.Fprintf(w, "[INFO] Results saved to: %s\n", path)
}
