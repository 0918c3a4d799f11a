package noncehunt

import "sync/atomic"

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

// Claim holds the two words shared by every work item of a batch: the found flag and the
// winning candidate. The driver resets it before a dispatch and reads it after; work items only
// ever call Try.
type Claim struct {
	found  atomic.Uint32
	winner atomic.Uint32
	done   atomic.Uint32 /* Set once winner is readable. */
}

// Reset clears the claim. It must not race with Try.
func (c *Claim) Reset() {
	c.done.Store(0)
	c.winner.Store(0)
	c.found.Store(0)
}

// Try attempts to claim the batch for candidate n. Only the first caller after a Reset
// succeeds; every later caller leaves the recorded winner untouched and gets false.
func (c *Claim) Try(n uint32) bool {
	if !c.found.CompareAndSwap(0, 1) {
		return false
	}
	c.winner.Store(n)
	c.done.Store(1)
	return true
}

// Found reports whether the flag has been taken. Work items use it to skip pointless work.
func (c *Claim) Found() bool { return c.found.Load() != 0 }

// Winner returns the claimed candidate once the dispatch that produced it has completed.
func (c *Claim) Winner() (uint32, bool) {
	if c.done.Load() == 0 {
		return 0, false
	}
	return c.winner.Load(), true
}
