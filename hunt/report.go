package main

import (
	. "fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/p7r0x7/noncehunt"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

const rule = "=============================================="

// console renders a search for a terminal: a banner, one progress line rewritten in place
// after every batch, and a closing report. Quiet consoles print only the winner.
type console struct {
	w     io.Writer
	quiet bool
	width int /* Length of the progress line last written. */
}

func (c *console) Start(target, batch uint32) {
	if c.quiet {
		return
	}
	Fprint(c.w, rule, n,
		"  ", yell, "Reduced 16-round SHA-256 candidate search", zero, n,
		"  Target:     ", Sprintf("0x%08X", target), n,
		"  Batch size: ", humanize.Comma(int64(batch)), n,
		rule, n+n)
}

func (c *console) Progress(s noncehunt.Stats) {
	if c.quiet {
		return
	}
	line := Sprintf("[run] time: %.1fs | tried: %s | speed: %s",
		s.Elapsed.Seconds(), humanize.Comma(int64(s.Attempted)), speed(s.Rate()))
	pad := ""
	if len(line) < c.width {
		pad = strings.Repeat(" ", c.width-len(line))
	}
	c.width = len(line)
	Fprint(c.w, "\r", line, pad)
}

func (c *console) Found(r noncehunt.Result) {
	if c.quiet {
		Fprintln(c.w, r.Candidate)
		return
	}
	if c.width > 0 {
		Fprint(c.w, n)
	}
	Fprint(c.w, n, yell, "[*] Found a candidate!", zero, n,
		"    Candidate:   ", und, r.Candidate, zero, Sprintf(" (0x%08X)", r.Candidate), n,
		"    Digest word: ", Sprintf("0x%08X", r.Digest), n,
		"    Elapsed:     ", seconds(r.Elapsed), n,
		"    Evaluations: ", humanize.Comma(int64(r.Attempts)), n)
}

// summary closes an unsuccessful run's progress line with why it ended.
func (c *console) summary(s noncehunt.Stats, why string) {
	if c.quiet {
		return
	}
	if c.width > 0 {
		Fprint(c.w, n)
	}
	Fprint(c.w, n, purp, why, zero, " after ", humanize.Comma(int64(s.Attempted)),
		" evaluations in ", seconds(s.Elapsed), n)
}

/* Throughput in SI-scaled hashes per second, e.g. "3.6 MH/s". */
func speed(rate float64) string { return humanize.SIWithDigits(rate, 2, "H/s") }

func seconds(d time.Duration) string { return Sprintf("%.2fs", d.Seconds()) }
