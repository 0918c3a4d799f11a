//go:build windows

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

/* The progress line is redrawn with a carriage return and coloured with VT sequences, so
both streams must be consoles that interpret them; otherwise output defaults to plain. */
func init() {
	pNoCodesDefault = !vtConsole(os.Stdout) || !vtConsole(os.Stderr)
	pNoCodes = pNoCodesDefault
}

// vtConsole reports whether f is a console that interprets VT sequences, switching the
// processing mode on where the console supports it.
func vtConsole(f *os.File) bool {
	const vt = windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
	h := windows.Handle(f.Fd())
	var mode uint32
	switch {
	case windows.GetConsoleMode(h, &mode) != nil:
		return false
	case mode&vt != 0:
		return true
	}
	return windows.SetConsoleMode(h, mode|vt) == nil
}
