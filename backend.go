package noncehunt

import (
	"context"
	"errors"
	"fmt"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

// ErrClosed is returned by a Backend used after Close.
var ErrClosed = errors.New("noncehunt: backend closed")

// Backend runs batches of independent work items. Dispatch must not return before every work
// item of the job has finished or been abandoned because of ctx; the driver reads the job's
// Claim right after.
type Backend interface {
	Dispatch(ctx context.Context, job Job) error
	Close() error
}

// Job describes one batch: Size work items, the i-th evaluating Candidate(Offset, i) and
// trying Claim if the result is below Target.
type Job struct {
	Offset, Size, Target uint32
	Eval                 func(uint32) uint32
	Claim                *Claim
}

// Candidate maps a batch-local index onto the search space.
func Candidate(offset, i uint32) uint32 { return offset + i }

func (j *Job) check() error {
	switch {
	case j.Eval == nil:
		return errors.New("noncehunt: job has no evaluator")
	case j.Claim == nil:
		return errors.New("noncehunt: job has no claim")
	case uint64(j.Offset)+uint64(j.Size) > space:
		return fmt.Errorf("noncehunt: batch [%#x, +%d) leaves the candidate space", j.Offset, j.Size)
	}
	return nil
}

// run evaluates work items [lo, lo+n) of j, stopping at the first one that satisfies the
// target whether or not its claim succeeds.
func (j *Job) run(lo, n uint32) {
	for i := lo; i < lo+n; i++ {
		c := Candidate(j.Offset, i)
		if j.Eval(c) < j.Target {
			j.Claim.Try(c)
			return
		}
	}
}
