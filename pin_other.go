//go:build !linux

package noncehunt

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

/* Processor affinity is only set on Linux; elsewhere workers keep their locked thread. */
func pinThread(int) error { return nil }
