//go:build opencl && cgo

package main

import (
	"github.com/p7r0x7/noncehunt"
	. "github.com/spf13/pflag"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

var pPlatform, pDevice = 0, -1

func init() {
	IntVar(&pDevice, "device", pDevice,
		purp+"run on this OpenCL device instead of the CPU"+zero+" (-1 for the CPU)")
	IntVar(&pPlatform, "platform", pPlatform,
		purp+"OpenCL platform the device belongs to"+zero)

	openDevice = func() (noncehunt.Backend, error) {
		if pDevice < 0 {
			return nil, nil
		}
		o, err := noncehunt.NewOpenCL(noncehunt.OpenCLOptions{
			Params: noncehunt.Reduced, Platform: pPlatform, Device: pDevice})
		if err != nil {
			return nil, err
		}
		log.Debugw("opencl backend selected", "platform", pPlatform, "device", pDevice)
		return o, nil
	}
}
