package noncehunt

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	detectrace "github.com/ipfs/go-detect-race"
	"github.com/stretchr/testify/require"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

// ticking forwards jobs to a real backend, remembers them and advances a mock clock by step
// per dispatch.
type ticking struct {
	Backend
	clk  *clock.Mock
	step time.Duration
	jobs []Job
	fail error
}

func (b *ticking) Dispatch(ctx context.Context, job Job) error {
	b.jobs = append(b.jobs, job)
	if b.clk != nil {
		b.clk.Add(b.step)
	}
	if b.fail != nil {
		return b.fail
	}
	return b.Backend.Dispatch(ctx, job)
}

type events struct {
	starts   int
	progress []Stats
	found    []Result
}

func (e *events) Start(uint32, uint32) { e.starts++ }
func (e *events) Progress(s Stats) { e.progress = append(e.progress, s) }
func (e *events) Found(r Result) { e.found = append(e.found, r) }

func TestSearch_EveryOutputBelowMax(t *testing.T) {
	t.Parallel()
	s := &Searcher{
		Backend:   newCPU(t, CPUOptions{Workers: 1}),
		Target:    0xffffffff,
		BatchSize: 1 << 16,
	}
	r, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Found, s.State())
	require.Equal(t, uint32(0), r.Candidate)
	require.Equal(t, uint32(0x1f951eb2), r.Digest)
	require.Equal(t, uint64(1), r.Batches)
	require.Equal(t, uint64(1), r.Attempts)

	/* Many workers: still the first batch, still a satisfying candidate. */
	s.Backend = newCPU(t, CPUOptions{Workers: 8, Span: 256})
	r, err = s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.Batches)
	require.Less(t, r.Candidate, uint32(1<<16))
	require.True(t, Reduced.Accepts(r.Candidate, s.Target))
	require.Equal(t, uint64(r.Candidate)+1, r.Attempts)
}

func TestSearch_ZeroTargetNeverFound(t *testing.T) {
	t.Parallel()
	batch, batches := uint32(1<<16), uint64(8)
	if detectrace.WithRace() {
		batch = 1 << 10
	}
	ev := &events{}
	s := &Searcher{
		Backend:    newCPU(t, CPUOptions{}),
		Target:     0,
		BatchSize:  batch,
		MaxBatches: batches,
		Reporter:   ev,
	}
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrHalted)
	require.Equal(t, Halted, s.State())
	require.Empty(t, ev.found)
	require.Len(t, ev.progress, int(batches))
	require.Equal(t, uint64(batch)*batches, s.Stats().Attempted)
}

func TestSearch_BatchSizeDoesNotChangeWinner(t *testing.T) {
	t.Parallel()
	const target = 0x00100000
	for _, tc := range []struct {
		batch   uint32
		opts    CPUOptions
		batches uint64
	}{
		{1024, CPUOptions{}, 2},
		{4096, CPUOptions{Span: 64}, 1},
		{1 << 20, CPUOptions{Workers: 1}, 1},
		{7, CPUOptions{Workers: 1}, 1360/7 + 1},
	} {
		s := &Searcher{Backend: newCPU(t, tc.opts), Target: target, BatchSize: tc.batch}
		r, err := s.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, uint32(1360), r.Candidate, "batch %d", tc.batch)
		require.Equal(t, uint32(0x00071a49), r.Digest)
		require.Equal(t, tc.batches, r.Batches, "batch %d", tc.batch)
		require.Equal(t, uint64(1361), r.Attempts, "batch %d", tc.batch)
	}
}

func TestSearch_Accounting(t *testing.T) {
	t.Parallel()
	clk := clock.NewMock()
	b := &ticking{Backend: newCPU(t, CPUOptions{Workers: 2}), clk: clk, step: 250 * time.Millisecond}
	ev := &events{}
	s := &Searcher{
		Backend:    b,
		Target:     0,
		BatchSize:  1000,
		Offset:     500,
		MaxBatches: 10,
		Clock:      clk,
		Reporter:   ev,
	}
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrHalted)
	require.Equal(t, 1, ev.starts)
	require.Len(t, b.jobs, 10)

	for k, job := range b.jobs {
		require.Equal(t, uint32(500+1000*k), job.Offset)
		require.Equal(t, uint32(1000), job.Size)
		st := ev.progress[k]
		require.Equal(t, uint64(1000*(k+1)), st.Attempted)
		require.Equal(t, uint64(k+1), st.Batches)
		require.Equal(t, uint64(500+1000*(k+1)), st.Offset)
		require.Equal(t, time.Duration(k+1)*250*time.Millisecond, st.Elapsed)
		require.InDelta(t, 4000, st.Rate(), 1e-9)
	}
}

func TestRate_ZeroDuration(t *testing.T) {
	t.Parallel()
	require.Zero(t, Rate(1<<20, 0))
	require.Zero(t, Rate(0, 0))
	require.Zero(t, Rate(5, -time.Second))
	require.Equal(t, 2e6, Rate(1e6, 500*time.Millisecond))

	/* A mock clock that never moves reports a zero rate rather than Inf or NaN. */
	clk := clock.NewMock()
	ev := &events{}
	s := &Searcher{
		Backend:    newCPU(t, CPUOptions{}),
		BatchSize:  64,
		MaxBatches: 1,
		Clock:      clk,
		Reporter:   ev,
	}
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrHalted)
	require.Len(t, ev.progress, 1)
	rate := ev.progress[0].Rate()
	require.False(t, math.IsInf(rate, 0) || math.IsNaN(rate))
	require.Zero(t, rate)
}

func TestSearch_Exhausted(t *testing.T) {
	t.Parallel()
	b := &ticking{Backend: newCPU(t, CPUOptions{})}
	s := &Searcher{
		Backend:   b,
		Target:    0,
		BatchSize: 3000,
		Offset:    0xffffffff - 9999,
	}
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, Exhausted, s.State())
	require.Equal(t, uint64(10000), s.Stats().Attempted)
	require.Equal(t, uint64(1<<32), s.Stats().Offset)

	require.Len(t, b.jobs, 4)
	last := b.jobs[3]
	require.Equal(t, uint32(1000), last.Size)
	require.Equal(t, uint32(0xffffffff), last.Offset+last.Size-1)
}

func TestSearch_WinnerAtTopOfSpace(t *testing.T) {
	t.Parallel()
	top := uint32(0xffffffff)
	target := Reduced.Sum(top) + 1 /* 0x87474663 */
	s := &Searcher{Backend: newCPU(t, CPUOptions{Workers: 1}), Target: target, BatchSize: 1, Offset: top}
	r, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, top, r.Candidate)
	require.Equal(t, uint64(1), r.Attempts)
}

func TestSearch_Budget(t *testing.T) {
	t.Parallel()
	clk := clock.NewMock()
	b := &ticking{Backend: newCPU(t, CPUOptions{}), clk: clk, step: time.Second}
	s := &Searcher{Backend: b, Target: 0, BatchSize: 128, Budget: 5 * time.Second, Clock: clk}
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrHalted)
	require.Len(t, b.jobs, 5)
	require.Equal(t, uint64(5*128), s.Stats().Attempted)
}

func TestSearch_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Searcher{Backend: newCPU(t, CPUOptions{}), Target: 0, BatchSize: 128}
	_, err := s.Run(ctx)
	require.ErrorIs(t, err, ErrHalted)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, Halted, s.State())
}

func TestSearch_DispatchFailureIsFatal(t *testing.T) {
	t.Parallel()
	boom := errors.New("device lost")
	b := &ticking{Backend: newCPU(t, CPUOptions{}), fail: boom}
	s := &Searcher{Backend: b, Target: 0xffffffff, BatchSize: 128}
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, Failed, s.State())
	require.Len(t, b.jobs, 1)
}

func TestSearch_Setup(t *testing.T) {
	t.Parallel()
	cpu := newCPU(t, CPUOptions{Workers: 1})
	for _, s := range []*Searcher{
		{BatchSize: 1},
		{Backend: cpu},
		{Backend: cpu, BatchSize: MaxBatchSize + 1},
		{Backend: cpu, BatchSize: 1, Params: Params{IV: iv, K: k[:2], Rounds: 3}},
	} {
		_, err := s.Run(context.Background())
		require.Error(t, err)
		require.Equal(t, Failed, s.State())
	}
	require.Equal(t, "exhausted", Exhausted.String())
	require.Equal(t, "State(42)", State(42).String())
}
