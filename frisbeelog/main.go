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

// Command frisbeelog views and analyzes the session logs written by
// frisbeelite, both text logs and binary captures (.clog).
//
// Usage:
//
//	frisbeelog <command> [flags] <logfile>
//
// Examples:
//
//	# View only failed attempts
//	frisbeelog view -outcome error FrisbeeLite_logfile_2024-03-01.txt
//
//	# Summarize every session of a capture
//	frisbeelog stats session.clog
//
//	# Export to CSV
//	frisbeelog export -format csv -o attempts.csv session.clog
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/trapedev/fixed-FrisbeeLite/frisbeelog/commands"
)

const usage = `frisbeelog - FrisbeeLite session log analyzer

Usage:
  frisbeelog <command> [flags] <logfile>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  stats    Show statistics about each session of the log file

Files ending in .clog are read as captures, anything else as text logs.
Use "frisbeelog <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parsePath parses args with fs and returns the single log file argument.
func parsePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `frisbeelog view - View log file in human-readable format

Usage:
  frisbeelog view [flags] <logfile>

Flags:
`)
		fs.PrintDefaults()
	}

	session := fs.String("session", "", "Filter by session ID prefix")
	outcome := fs.String("outcome", "", "Filter attempts by outcome (ok, error)")
	request := fs.String("bRequest", "", "Filter attempts by bRequest, e.g. 0x06")

	path := parsePath(fs, args)

	filter := commands.ViewFilter{Session: *session}
	if *outcome != "" {
		o, err := commands.ParseOutcomeFlag(*outcome)
		if err != nil {
			fail(err)
		}
		filter.Outcome = &o
	}
	if *request != "" {
		v, err := strconv.ParseUint(*request, 0, 8)
		if err != nil {
			fail(fmt.Errorf("invalid bRequest %q: %w", *request, err))
		}
		rq := uint8(v)
		filter.Request = &rq
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `frisbeelog export - Export log file to JSONL or CSV format

Usage:
  frisbeelog export [flags] <logfile>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path := parsePath(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `frisbeelog stats - Show statistics about each session of the log file

Usage:
  frisbeelog stats <logfile>

`)
	}

	path := parsePath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
