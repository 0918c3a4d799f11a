package noncehunt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.
// The driver loop: reset the claim, dispatch one batch, read the claim back, then either
// report the winner or advance and report progress.

const (
	space = 1 << 32 /* Number of candidates. */

	// MaxBatchSize bounds Searcher.BatchSize.
	MaxBatchSize = 1 << 31
)

var log = logging.Logger("noncehunt")

var (
	// ErrExhausted is returned once every candidate up to 0xFFFFFFFF has been tried without
	// a winner. The search never wraps around.
	ErrExhausted = errors.New("noncehunt: candidate space exhausted")

	// ErrHalted is returned when a batch cap, time budget or context stopped the search early.
	ErrHalted = errors.New("noncehunt: search halted")
)

// State is where a Searcher is in its run.
type State int

const (
	Idle State = iota
	Running
	Found
	Exhausted
	Halted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	case Halted:
		return "halted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stats is the run accounting. Attempted grows by exactly one batch per unsuccessful batch.
type Stats struct {
	Attempted uint64
	Batches   uint64
	Offset    uint64 /* Start of the next batch; reaches 1<<32 on exhaustion. */
	Elapsed   time.Duration
}

// Rate returns candidates per second, or 0 before any time has passed.
func (s Stats) Rate() float64 { return Rate(s.Attempted, s.Elapsed) }

// Rate divides attempted by elapsed seconds and never divides by a zero duration.
func Rate(attempted uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(attempted) / elapsed.Seconds()
}

// Result describes a winning candidate. Attempts counts every evaluation up to and including
// the winner, assuming the winning batch was scanned in order.
type Result struct {
	Candidate uint32
	Digest    uint32
	Attempts  uint64
	Batches   uint64
	Elapsed   time.Duration
}

// Reporter receives the human-facing events of a run. Calls come from the driver goroutine only.
type Reporter interface {
	Start(target, batch uint32)
	Progress(Stats)
	Found(Result)
}

// Searcher drives a Backend until a candidate's output falls below Target. BatchSize must be
// in [1, MaxBatchSize]. A zero Params selects Reduced. MaxBatches and Budget, when nonzero,
// bound the run. Clock and Reporter are optional.
type Searcher struct {
	Backend    Backend
	Params     Params
	Target     uint32
	BatchSize  uint32
	Offset     uint32
	MaxBatches uint64
	Budget     time.Duration
	Clock      clock.Clock
	Reporter   Reporter

	state State
	stats Stats
	claim Claim
}

// State returns the state the last call to Run left the searcher in.
func (s *Searcher) State() State { return s.state }

// Stats returns the accounting of the last call to Run.
func (s *Searcher) Stats() Stats { return s.stats }

// Run searches from Offset upward. It returns the winner, or ErrExhausted, ErrHalted (wrapping
// the context's error when cancelled) or the first dispatch error; none of them are retried.
func (s *Searcher) Run(ctx context.Context) (Result, error) {
	if err := s.setup(); err != nil {
		s.state = Failed
		return Result{}, err
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	eval := s.Params.Sum
	if s.Reporter != nil {
		s.Reporter.Start(s.Target, s.BatchSize)
	}

	start := clk.Now()
	s.state, s.stats = Running, Stats{Offset: uint64(s.Offset)}
	for {
		switch {
		case s.stats.Offset >= space:
			s.state = Exhausted
			log.Debugw("search exhausted", "attempted", s.stats.Attempted)
			return Result{}, ErrExhausted
		case s.MaxBatches > 0 && s.stats.Batches >= s.MaxBatches:
			return s.halt(fmt.Errorf("%w: %d batches", ErrHalted, s.stats.Batches))
		case s.Budget > 0 && s.stats.Elapsed >= s.Budget:
			return s.halt(fmt.Errorf("%w: budget of %s spent", ErrHalted, s.Budget))
		case ctx.Err() != nil:
			return s.halt(fmt.Errorf("%w: %w", ErrHalted, ctx.Err()))
		}

		/* The last batch is cut short so the scan ends exactly at the top of the space. */
		size := uint64(s.BatchSize)
		if rem := space - s.stats.Offset; rem < size {
			size = rem
		}
		offset := uint32(s.stats.Offset)

		s.claim.Reset()
		err := s.Backend.Dispatch(ctx, Job{
			Offset: offset, Size: uint32(size), Target: s.Target,
			Eval: eval, Claim: &s.claim})
		s.stats.Elapsed = clk.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return s.halt(fmt.Errorf("%w: %w", ErrHalted, ctx.Err()))
			}
			s.state = Failed
			log.Errorw("dispatch failed", "offset", offset, "size", size, "err", err)
			return Result{}, fmt.Errorf("noncehunt: dispatching batch at %#x: %w", offset, err)
		}
		s.stats.Batches++

		if winner, ok := s.claim.Winner(); ok {
			r := Result{
				Candidate: winner,
				Digest:    eval(winner),
				Attempts:  s.stats.Attempted + uint64(winner-offset) + 1,
				Batches:   s.stats.Batches,
				Elapsed:   s.stats.Elapsed,
			}
			s.state = Found
			log.Debugw("search found", "candidate", winner, "batches", r.Batches)
			if s.Reporter != nil {
				s.Reporter.Found(r)
			}
			return r, nil
		}

		s.stats.Attempted += size
		s.stats.Offset += size
		if s.Reporter != nil {
			s.Reporter.Progress(s.stats)
		}
	}
}

func (s *Searcher) setup() error {
	switch {
	case s.Backend == nil:
		return errors.New("noncehunt: searcher has no backend")
	case s.BatchSize == 0 || s.BatchSize > MaxBatchSize:
		return fmt.Errorf("noncehunt: batch size %d, want 1 to %d", s.BatchSize, MaxBatchSize)
	}
	if s.Params.Rounds == 0 && s.Params.K == nil {
		s.Params = Reduced
	}
	return s.Params.Validate()
}

func (s *Searcher) halt(err error) (Result, error) {
	s.state = Halted
	log.Debugw("search halted", "attempted", s.stats.Attempted, "reason", err)
	return Result{}, err
}
