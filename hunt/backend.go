package main

import "github.com/p7r0x7/noncehunt"

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

/* Set by builds that can drive a device; returns a nil Backend when none was selected. */
var openDevice func() (noncehunt.Backend, error)

// openBackend returns the selected device, or else a pool of workers on this machine.
func openBackend() (noncehunt.Backend, error) {
	if openDevice != nil {
		if b, err := openDevice(); b != nil || err != nil {
			return b, err
		}
	}
	c, err := noncehunt.NewCPU(noncehunt.CPUOptions{Workers: pWorkers, Pin: pPin})
	if err != nil {
		return nil, err
	}
	log.Debugw("cpu backend selected", "workers", c.Workers(), "pin", pPin)
	return c, nil
}
