package main

import (
	"context"
	"errors"
	. "fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	logging "github.com/ipfs/go-log/v2"
	"github.com/p7r0x7/noncehunt"
	"github.com/p7r0x7/vainpath"
	. "github.com/spf13/pflag"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

const n = "\n"
const success, failure, invalid, exhausted, halted = 0, 1, 2, 3, 4

var log = logging.Logger("hunt")

func main() { os.Exit(program(os.Args[1:])) }

// help prints a usage menu. To consistently render this menu in most terminal windows, its
// content should be no wider than 80 columns.
func help() {
	origin, err := os.Executable()
	if err != nil {
		origin = "hunt" /* Default binary name */
	} else {
		origin = filepath.Base(origin)
	}
	name := vainpath.Trim(origin, "…", 12)
	spaces := strings.Repeat(" ", utf8.RuneCountInString(name)+3)
	Fprint(os.Stderr, yell, "Searches 32-bit candidates for a reduced SHA-256 word below a target.",
		zero, n+n+
			"Usage:"+n+
			"  ", name, " [-h]"+n,
		spaces, "[-t <uint>] [-n <uint>] [-o <uint>] [-w <int>] [--pin]"+n,
		spaces, "[--max-batches <uint>] [--budget <dur>] [--quiet|no-codes]"+n,
		spaces, "[--kernel]"+n+n+
			"Options:"+n)
	PrintDefaults()
	Fprint(os.Stderr, n+"Without flags the search runs from 0 for a target of 0x0000000F in batches of"+
		n+"1,048,576 candidates. The transform is NOT conformant SHA-256: 16 rounds over one"+
		n+"candidate word and fifteen zero words, with no padding or message schedule."+n)
}

// This program is the command-line interface of the search. Exit status is 0 when a winner is
// found, 1 on setup or dispatch failure, 2 for invalid flags, 3 when the candidate space runs
// out and 4 when a limit or an interrupt stops the search.
func program(args []string) int {
	if err := CommandLine.Parse(args); err != nil {
		return invalid
	}
	if pHelp {
		help()
		return success
	}
	if pLogLevel != "" {
		lvl, err := logging.LevelFromString(pLogLevel)
		if err != nil {
			Fprintln(os.Stderr, purp+"Invalid log level:"+zero, pLogLevel)
			return invalid
		}
		logging.SetAllLoggers(lvl)
	}

	if pKernel {
		src, err := noncehunt.Reduced.Kernel()
		if err != nil {
			Fprintln(os.Stderr, err)
			return failure
		}
		Print(src)
		return success
	}

	target, err := parseUint32(pTarget)
	if err != nil {
		Fprintln(os.Stderr, purp+"Invalid target:"+zero, err)
		return invalid
	}
	offset, err := parseUint32(pOffset)
	if err != nil {
		Fprintln(os.Stderr, purp+"Invalid offset:"+zero, err)
		return invalid
	}
	if pBatch == 0 || pBatch > noncehunt.MaxBatchSize {
		Fprintln(os.Stderr, purp+"Batch size must be between 1 and 2^31."+zero)
		return invalid
	}

	backend, err := openBackend()
	if err != nil {
		Fprintln(os.Stderr, purp+"Could not start the compute backend:"+zero, err)
		return failure
	}
	defer backend.Close()
	log.Debugw("search configured", "target", target, "offset", offset, "batch", pBatch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := &console{w: os.Stdout, quiet: pQuiet}
	s := &noncehunt.Searcher{
		Backend:    backend,
		Params:     noncehunt.Reduced,
		Target:     target,
		BatchSize:  pBatch,
		Offset:     offset,
		MaxBatches: pMaxBatches,
		Budget:     pBudget,
		Reporter:   out,
	}
	_, err = s.Run(ctx)
	return exitCode(err, out, s.Stats())
}

func exitCode(err error, out *console, s noncehunt.Stats) int {
	switch {
	case err == nil:
		return success
	case errors.Is(err, noncehunt.ErrExhausted):
		out.summary(s, "Candidate space exhausted without a winner")
		return exhausted
	case errors.Is(err, noncehunt.ErrHalted):
		out.summary(s, "Search stopped")
		return halted
	}
	out.summary(s, "Search failed")
	Fprintln(os.Stderr, err)
	return failure
}

// parseUint32 accepts the same base prefixes as Go integer literals.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	return uint32(v), err
}
