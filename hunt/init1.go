package main

import (
	"os"
	"time"

	. "github.com/spf13/pflag"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

var pTarget, pOffset, pLogLevel, pNoCodesDefault = "0x0000000F", "0", "", false
var pBatch, pWorkers, pMaxBatches, pBudget = uint32(1 << 20), 0, uint64(0), time.Duration(0)
var pHelp, pKernel, pNoCodes, pPin, pQuiet bool
var yell, purp, und, zero = "\033[33m", "\033[35m", "\033[4m", "\033[0m"

/* Flags are only defined here; main parses them so that tests can load this package. */
func init() {
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--no-codes=false":
			pNoCodes = false
		case "--quiet", "--quiet=true":
			pNoCodes, pQuiet = true, true
		case "--no-codes", "--no-codes=true":
			pNoCodes = true
		}
	}
	if pNoCodes {
		yell, purp, und, zero = "", "", "", ""
	}

	BoolVarP(&pHelp, "help", "h", false,
		purp+"print this help menu"+zero+n)

	Uint32VarP(&pBatch, "batch", "n", pBatch,
		purp+"candidates dispatched per batch"+zero+" (at most 2^31)")

	Uint64Var(&pMaxBatches, "max-batches", 0,
		purp+"stop after this many batches"+zero+" (0 for no limit)")

	DurationVar(&pBudget, "budget", 0,
		purp+"stop once this much time has passed"+zero+" (0 for no limit)")

	BoolVar(&pKernel, "kernel", false,
		purp+"print the OpenCL C source of the transform and exit"+zero)

	StringVar(&pLogLevel, "log-level", "",
		purp+"diagnostic log level on stderr"+zero+" (default $GOLOG_LOG_LEVEL)")

	BoolVar(&pNoCodes, "no-codes", pNoCodesDefault,
		purp+"print to console w/o formatting codes"+zero)

	StringVarP(&pOffset, "offset", "o", pOffset,
		purp+"first candidate to try (base-prefixed binary, octal,"+zero+
			n+purp+"hexadecimal or decimal)"+zero)

	BoolVar(&pPin, "pin", false,
		purp+"lock each worker to its own processor"+zero)

	BoolVar(&pQuiet, "quiet", false,
		purp+"print ONLY the winning candidate"+zero+
			n+"(enables --no-codes)")

	StringVarP(&pTarget, "target", "t", pTarget,
		purp+"accept digest words strictly below this value"+zero+
			n+purp+"(base-prefixed like --offset)"+zero)

	IntVarP(&pWorkers, "workers", "w", 0,
		purp+"worker goroutines"+zero+" (0 for one per CPU)")

	/* Order flags alphabetically except for help, which is hoisted to the top. */
	CommandLine.SortFlags = false
}
