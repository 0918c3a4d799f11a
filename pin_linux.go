//go:build linux

package noncehunt

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

// pinThread restricts the calling OS thread to one of the processors the process may run on,
// chosen round-robin by worker id. The caller must already hold runtime.LockOSThread.
func pinThread(id int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return err
	}
	n := allowed.Count()
	if n == 0 {
		return fmt.Errorf("empty affinity mask")
	}
	want := id % n
	for cpu := 0; ; cpu++ {
		if !allowed.IsSet(cpu) {
			continue
		}
		if want--; want < 0 {
			var set unix.CPUSet
			set.Set(cpu)
			return unix.SchedSetaffinity(0, &set)
		}
	}
}
